package connector

import (
	"context"
	"io"
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/meowith/connector-go/client"
)

// StartUploadSession declares a resumable upload of size bytes to path.
// Uploaded in the response is nonzero only when the node reused an earlier
// session for the same upload; the caller continues from that offset.
func (c *Connector) StartUploadSession(ctx context.Context, path string, size uint64) (*UploadSessionStartResponse, error) {
	var session UploadSessionStartResponse
	err := c.call(ctx, "StartUploadSession", func(ctx context.Context) error {
		reqOpts := []client.RequestOption{client.WithPayload(UploadSessionRequest{Size: size})}
		return c.send(ctx, http.MethodPost, routeUploadOneshot, path, "", reqOpts, client.WithDestination(&session))
	}, attribute.String("meowith.path", path), attribute.Int64("meowith.size", int64(size)))
	if err != nil {
		return nil, err
	}

	return &session, nil
}

// ResumeUploadSession asks the node how much of session it holds. The
// returned UploadedSize supersedes any offset the caller tracked itself.
// A session whose code is not a UUID fails locally without a request.
// NoSuchSession means the session expired; only a new session recovers.
func (c *Connector) ResumeUploadSession(ctx context.Context, session *UploadSessionStartResponse) (*UploadSessionResumeResponse, error) {
	const op = "ResumeUploadSession"

	var resp UploadSessionResumeResponse
	err := c.call(ctx, op, func(ctx context.Context) error {
		id, err := sessionID(op, session)
		if err != nil {
			return err
		}

		reqOpts := []client.RequestOption{client.WithPayload(UploadSessionResumeRequest{SessionID: id})}
		return c.send(ctx, http.MethodPost, routeUploadResume, "", "", reqOpts, client.WithDestination(&resp))
	}, sessionAttr(session))
	if err != nil {
		return nil, err
	}

	return &resp, nil
}

// PutFile streams r into session as a multipart body that names the
// session id beside the data. r must start at the offset the node
// confirmed; nothing is skipped or chunked here.
func (c *Connector) PutFile(ctx context.Context, session *UploadSessionStartResponse, r io.Reader) error {
	return c.put(ctx, "PutFile", session, r, -1, false)
}

// PutFileSized is PutFile for an r of exactly size bytes, which lets the
// request declare its Content-Length. A negative size fails locally.
func (c *Connector) PutFileSized(ctx context.Context, session *UploadSessionStartResponse, r io.Reader, size int64) error {
	return c.put(ctx, "PutFileSized", session, r, size, true)
}

func (c *Connector) put(ctx context.Context, op string, session *UploadSessionStartResponse, r io.Reader, size int64, sized bool) error {
	return c.call(ctx, op, func(ctx context.Context) error {
		id, err := sessionID(op, session)
		if err != nil {
			return err
		}
		if r == nil {
			return &LocalError{Op: op, Err: ErrNilReader}
		}
		if sized && size < 0 {
			return &LocalError{Op: op, Err: ErrInvalidSize}
		}

		body, contentType, length, err := putForm(id, r, size)
		if err != nil {
			return &LocalError{Op: op, Err: err}
		}
		defer body.Close()

		reqOpts := []client.RequestOption{client.WithStream(body, length), client.WithContentType(contentType)}
		return c.send(ctx, http.MethodPost, routeUploadPut, session.Code, "", reqOpts)
	}, sessionAttr(session))
}

func sessionID(op string, session *UploadSessionStartResponse) (uuid.UUID, error) {
	if session == nil {
		return uuid.Nil, &LocalError{Op: op, Err: ErrNilSession}
	}

	id, err := session.SessionID()
	if err != nil {
		return uuid.Nil, &LocalError{Op: op, Err: err}
	}
	return id, nil
}

func sessionAttr(session *UploadSessionStartResponse) attribute.KeyValue {
	if session == nil {
		return attribute.String("meowith.session", "")
	}
	return attribute.String("meowith.session", session.Code)
}
