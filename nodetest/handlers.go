package nodetest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/meowith/connector-go/connector"
	"github.com/meowith/connector-go/internal/web"
	"github.com/meowith/connector-go/internal/web/errs"
	"github.com/meowith/connector-go/internal/web/mux"
)

var (
	errOtherScope     = errors.New("node does not serve this bucket")
	errLengthRequired = errors.New("content length required")
	errShortBody      = errors.New("body shorter than content length")
	errLongBody       = errors.New("body longer than content length")
	errNotAFile       = errors.New("not a file")
)

// scope rejects requests for any application or bucket but the node's own.
func (n *Node) scope(handler mux.Handler) mux.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		appID, err := web.ParamUUID(r, "app")
		if err != nil {
			return err
		}
		bucketID, err := web.ParamUUID(r, "bucket")
		if err != nil {
			return err
		}
		if appID != n.appID || bucketID != n.bucketID {
			return errs.New(connector.NotFound, fmt.Errorf("%s/%s: %w", appID, bucketID, errOtherScope))
		}

		return handler(ctx, w, r)
	}
}

func pathParam(r *http.Request) (string, error) {
	raw, err := web.Param(r, "path")
	if err != nil {
		return "", err
	}
	return cleanPath(raw)
}

// upload stores a file in one request, or starts an upload session when
// the body is a JSON session request.
func (n *Node) upload(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	p, err := pathParam(r)
	if err != nil {
		return err
	}

	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "application/json" {
		return n.startSession(ctx, w, r, p)
	}

	if r.ContentLength < 0 {
		return errs.New(connector.BadRequest, errLengthRequired)
	}

	n.mu.Lock()
	err = n.checkQuotaLocked(p, uint64(r.ContentLength))
	n.mu.Unlock()
	if err != nil {
		return err
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, r.ContentLength+1))
	switch {
	case err != nil:
		return errs.New(connector.BadRequest, fmt.Errorf("reading body: %w", err))
	case int64(len(data)) < r.ContentLength:
		return errs.New(connector.BadRequest, errShortBody)
	case int64(len(data)) > r.ContentLength:
		return errs.New(connector.BadRequest, errLongBody)
	}

	if err := n.commit(ctx, p, data); err != nil {
		return err
	}

	return web.RespondJSON(ctx, w, http.StatusCreated, nil)
}

// commit stores a finished upload, rechecking quota against whatever
// changed while the body was read.
func (n *Node) commit(ctx context.Context, p string, data []byte) error {
	_, span := mux.AddSpan(ctx, "nodetest.commit", attribute.String("path", p), attribute.Int("size", len(data)))
	defer span.End()

	n.mu.Lock()
	defer n.mu.Unlock()

	if err := n.checkQuotaLocked(p, uint64(len(data))); err != nil {
		return err
	}
	return n.storeLocked(p, data, n.now().UTC())
}

func (n *Node) download(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	p, err := pathParam(r)
	if err != nil {
		return err
	}

	n.mu.Lock()
	f, ok := n.files[p]
	var data []byte
	if ok {
		data = f.data
	}
	_, isDir := n.dirs[p]
	n.mu.Unlock()

	switch {
	case isDir:
		return errs.New(connector.BadRequest, fmt.Errorf("%q: %w", p, errNotAFile))
	case !ok:
		return errs.New(connector.NotFound, fmt.Errorf("%q: %w", p, errNoEntity))
	}

	contentType := mime.TypeByExtension(path.Ext(p))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	h := w.Header()
	h.Set(connector.HeaderFileContentLength, strconv.Itoa(len(data)))
	h.Set(connector.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, path.Base(p)))
	h.Set(connector.HeaderContentType, contentType)
	h.Set("Accept-Ranges", "bytes")

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		return web.RespondStream(ctx, w, http.StatusOK, bytes.NewReader(data), int64(len(data)))
	}

	start, end, err := parseRange(rangeHeader, int64(len(data)))
	if err != nil {
		h.Set("Content-Range", fmt.Sprintf("bytes */%d", len(data)))
		return err
	}

	h.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, len(data)))
	return web.RespondStream(ctx, w, http.StatusPartialContent, bytes.NewReader(data[start:end+1]), end-start+1)
}

func (n *Node) deleteFile(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	p, err := pathParam(r)
	if err != nil {
		return err
	}

	n.mu.Lock()
	err = n.deleteFileLocked(p, n.now().UTC())
	n.mu.Unlock()
	if err != nil {
		return err
	}

	return web.RespondJSON(ctx, w, http.StatusOK, nil)
}

func (n *Node) renameFile(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return n.rename(ctx, w, r, n.renameFileLocked)
}

func (n *Node) renameDirectory(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	return n.rename(ctx, w, r, n.renameDirLocked)
}

func (n *Node) rename(ctx context.Context, w http.ResponseWriter, r *http.Request, move func(from, to string, now time.Time) error) error {
	from, err := pathParam(r)
	if err != nil {
		return err
	}

	var req connector.RenameEntityRequest
	if err := web.Decode(r, &req); err != nil {
		return err
	}
	to, err := cleanPath(req.To)
	if err != nil {
		return err
	}

	n.mu.Lock()
	err = move(from, to, n.now().UTC())
	n.mu.Unlock()
	if err != nil {
		return err
	}

	return web.RespondJSON(ctx, w, http.StatusOK, nil)
}

func (n *Node) createDirectory(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	p, err := pathParam(r)
	if err != nil {
		return err
	}

	n.mu.Lock()
	err = n.createDirLocked(p, n.now().UTC())
	n.mu.Unlock()
	if err != nil {
		return err
	}

	return web.RespondJSON(ctx, w, http.StatusCreated, nil)
}

func (n *Node) deleteDirectory(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	p, err := pathParam(r)
	if err != nil {
		return err
	}

	var req connector.DeleteDirectoryRequest
	if err := web.DecodeOptional(r, &req); err != nil {
		return err
	}

	n.mu.Lock()
	err = n.deleteDirLocked(p, req.Recursive, n.now().UTC())
	n.mu.Unlock()
	if err != nil {
		return err
	}

	return web.RespondJSON(ctx, w, http.StatusOK, nil)
}

func (n *Node) listDirectory(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var p string
	if r.PathValue("path") != "" {
		var err error
		if p, err = pathParam(r); err != nil {
			return err
		}
	}

	n.mu.Lock()
	entities, err := n.childrenLocked(p)
	n.mu.Unlock()
	if err != nil {
		return err
	}

	return respondList(ctx, w, r, entities)
}

func (n *Node) listFiles(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	n.mu.Lock()
	entities := n.allFilesLocked()
	n.mu.Unlock()

	return respondList(ctx, w, r, entities)
}

func (n *Node) listDirectories(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	n.mu.Lock()
	entities := n.allDirsLocked()
	n.mu.Unlock()

	return respondList(ctx, w, r, entities)
}

func respondList(ctx context.Context, w http.ResponseWriter, r *http.Request, entities []connector.Entity) error {
	start, err := web.QueryInt32(r, "start")
	if err != nil {
		return err
	}
	end, err := web.QueryInt32(r, "end")
	if err != nil {
		return err
	}

	entities, err = window(entities, start, end)
	if err != nil {
		return err
	}

	return web.RespondJSON(ctx, w, http.StatusOK, connector.EntityList{Entities: entities})
}

func (n *Node) stat(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	p, err := pathParam(r)
	if err != nil {
		return err
	}

	n.mu.Lock()
	entity, err := n.statLocked(p)
	n.mu.Unlock()
	if err != nil {
		return err
	}

	return web.RespondJSON(ctx, w, http.StatusOK, entity)
}

func (n *Node) info(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	n.mu.Lock()
	dto := connector.BucketDto{
		AppID:        n.appID,
		ID:           n.bucketID,
		Name:         n.bucketName,
		AtomicUpload: true,
		Quota:        n.quota,
		FileCount:    int64(len(n.files)),
		SpaceTaken:   n.spaceTakenLocked(),
		Created:      n.created,
		LastModified: n.modified,
	}
	n.mu.Unlock()

	return web.RespondJSON(ctx, w, http.StatusOK, dto)
}
