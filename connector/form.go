package connector

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"

	"github.com/google/uuid"
)

// A session put is a multipart/form-data body holding these parts in
// order: PutPartSession, an application/json [UploadSessionPutRequest],
// then PutPartData, the raw bytes.
const (
	PutPartSession = "session"
	PutPartData    = "data"
)

// putForm streams data into a session put body without buffering it. The
// returned length is -1 when size is negative. The body must be closed,
// which also stops the writer if the request never reads it.
func putForm(id uuid.UUID, data io.Reader, size int64) (body io.ReadCloser, contentType string, length int64, err error) {
	meta, err := json.Marshal(UploadSessionPutRequest{SessionID: id})
	if err != nil {
		return nil, "", 0, err
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	length = -1
	if size >= 0 {
		// The envelope length depends only on the boundary, so write it
		// once around an empty data part.
		var envelope bytes.Buffer
		dry := multipart.NewWriter(&envelope)
		if err := dry.SetBoundary(mw.Boundary()); err != nil {
			return nil, "", 0, err
		}
		if err := writePutForm(dry, meta, id, nil); err != nil {
			return nil, "", 0, err
		}
		length = int64(envelope.Len()) + size
	}

	go func() {
		pw.CloseWithError(writePutForm(mw, meta, id, data))
	}()

	return pr, mw.FormDataContentType(), length, nil
}

func writePutForm(mw *multipart.Writer, meta []byte, id uuid.UUID, data io.Reader) error {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"`, PutPartSession))
	h.Set("Content-Type", "application/json")
	part, err := mw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("session part: %w", err)
	}
	if _, err := part.Write(meta); err != nil {
		return fmt.Errorf("session part: %w", err)
	}

	part, err = mw.CreateFormFile(PutPartData, id.String())
	if err != nil {
		return fmt.Errorf("data part: %w", err)
	}
	if data != nil {
		if _, err := io.Copy(part, data); err != nil {
			return fmt.Errorf("data part: %w", err)
		}
	}

	return mw.Close()
}
