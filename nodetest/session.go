package nodetest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/meowith/connector-go/connector"
	"github.com/meowith/connector-go/internal/web"
	"github.com/meowith/connector-go/internal/web/errs"
)

var (
	errNoSession = errors.New("no such upload session")
	errOverflow  = errors.New("put exceeds the declared session size")

	errSessionMismatch = errors.New("put names another session")
	errPartOrder       = errors.New("unexpected put part")
)

// startSession opens an upload session for p, or hands back the live
// session already open for the same path and size.
func (n *Node) startSession(ctx context.Context, w http.ResponseWriter, r *http.Request, p string) error {
	var req connector.UploadSessionRequest
	if err := web.Decode(r, &req); err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if err := n.checkQuotaLocked(p, req.Size); err != nil {
		return err
	}

	now := n.now().UTC()
	n.expireSessionsLocked(now)

	for _, s := range n.sessions {
		if s.path == p && s.size == req.Size {
			s.lastActive = now
			return web.RespondJSON(ctx, w, http.StatusOK, n.startResponse(s))
		}
	}

	s := &session{id: uuid.New(), path: p, size: req.Size, lastActive: now}
	n.sessions[s.id] = s

	return web.RespondJSON(ctx, w, http.StatusCreated, n.startResponse(s))
}

func (n *Node) startResponse(s *session) connector.UploadSessionStartResponse {
	return connector.UploadSessionStartResponse{
		Code:     s.id.String(),
		Validity: uint32(n.validity / time.Second),
		Uploaded: uint64(len(s.data)),
	}
}

func (n *Node) resumeSession(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req connector.UploadSessionResumeRequest
	if err := web.Decode(r, &req); err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	s, err := n.sessionLocked(req.SessionID)
	if err != nil {
		return err
	}

	return web.RespondJSON(ctx, w, http.StatusOK, connector.UploadSessionResumeResponse{UploadedSize: uint64(len(s.data))})
}

// put appends the data part of a session put. Bytes received before the
// body breaks off are kept for a later resume. The session commits once
// it holds the declared size.
func (n *Node) put(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id, err := web.ParamUUID(r, "code")
	if err != nil {
		return err
	}

	data, err := putData(r, id)
	if err != nil {
		return err
	}

	n.mu.Lock()
	s, err := n.sessionLocked(id)
	var remaining uint64
	if err == nil {
		remaining = s.size - uint64(len(s.data))
	}
	n.mu.Unlock()
	if err != nil {
		return err
	}

	chunk, readErr := io.ReadAll(io.LimitReader(data, int64(remaining)+1))
	if uint64(len(chunk)) > remaining {
		return errs.New(connector.BadRequest, fmt.Errorf("%d bytes over %d remaining: %w", len(chunk), remaining, errOverflow))
	}

	n.mu.Lock()
	s, err = n.sessionLocked(id)
	if err != nil {
		n.mu.Unlock()
		return err
	}
	if uint64(len(s.data)+len(chunk)) > s.size {
		n.mu.Unlock()
		return errs.New(connector.BadRequest, errOverflow)
	}
	s.data = append(s.data, chunk...)
	complete := readErr == nil && uint64(len(s.data)) == s.size
	if complete {
		delete(n.sessions, id)
	}
	n.mu.Unlock()

	if readErr != nil {
		return errs.New(connector.BadRequest, fmt.Errorf("put interrupted after %d bytes: %w", len(chunk), readErr))
	}

	if complete {
		if err := n.commit(ctx, s.path, s.data); err != nil {
			return err
		}
		return web.RespondJSON(ctx, w, http.StatusCreated, nil)
	}

	return web.RespondJSON(ctx, w, http.StatusOK, nil)
}

// putData checks the session part of a put body against code and returns
// the data part that follows it, unread.
func putData(r *http.Request, code uuid.UUID) (io.Reader, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, errs.New(connector.BadRequest, fmt.Errorf("put body: %w", err))
	}

	part, err := nextPart(mr, connector.PutPartSession)
	if err != nil {
		return nil, err
	}
	var meta connector.UploadSessionPutRequest
	if err := json.NewDecoder(io.LimitReader(part, 1<<10)).Decode(&meta); err != nil {
		return nil, errs.New(connector.BadRequest, fmt.Errorf("session part: %w", err))
	}
	if meta.SessionID != code {
		return nil, errs.New(connector.BadRequest, fmt.Errorf("session part names %s, path names %s: %w", meta.SessionID, code, errSessionMismatch))
	}

	return nextPart(mr, connector.PutPartData)
}

func nextPart(mr *multipart.Reader, name string) (*multipart.Part, error) {
	part, err := mr.NextPart()
	if err != nil {
		return nil, errs.New(connector.BadRequest, fmt.Errorf("%s part: %w", name, err))
	}
	if part.FormName() != name {
		return nil, errs.New(connector.BadRequest, fmt.Errorf("got part %q, want %q: %w", part.FormName(), name, errPartOrder))
	}
	return part, nil
}

// sessionLocked returns the live session id, refreshing its activity.
// Unknown and lapsed sessions are NoSuchSession.
func (n *Node) sessionLocked(id uuid.UUID) (*session, error) {
	now := n.now().UTC()
	n.expireSessionsLocked(now)

	s, ok := n.sessions[id]
	if !ok {
		return nil, errs.New(connector.NoSuchSession, fmt.Errorf("%s: %w", id, errNoSession))
	}

	s.lastActive = now
	return s, nil
}

func (n *Node) expireSessionsLocked(now time.Time) {
	for id, s := range n.sessions {
		if now.Sub(s.lastActive) > n.validity {
			delete(n.sessions, id)
		}
	}
}
