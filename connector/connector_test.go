package connector_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/meowith/connector-go/client"
	"github.com/meowith/connector-go/connector"
)

const testToken = "app-token"

var (
	appID    = uuid.MustParse("6f1c1a52-3a5e-4a36-9d5c-6a1f4f3bb001")
	bucketID = uuid.MustParse("0b8d8f5e-1f44-4c8e-8f0e-3e0b1e9a7c02")
	scope    = appID.String() + "/" + bucketID.String()
)

// recorded is what the fake node saw of a request.
type recorded struct {
	Method        string
	Path          string
	RawQuery      string
	ContentType   string
	ContentLength int64
	Auth          string
	Range         string
	Body          string
}

type recorder struct {
	mu   sync.Mutex
	reqs []recorded
}

// add records r. Multipart bodies are recorded part by part, one
// "name (content type): content" line each, since their boundary is random.
func (rec *recorder) add(r *http.Request) {
	raw, _ := io.ReadAll(r.Body)

	contentType, body := r.Header.Get("Content-Type"), string(raw)
	if mt, params, _ := mime.ParseMediaType(contentType); mt == "multipart/form-data" {
		contentType, body = mt, formParts(raw, params["boundary"])
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.reqs = append(rec.reqs, recorded{
		Method:        r.Method,
		Path:          r.URL.EscapedPath(),
		RawQuery:      r.URL.RawQuery,
		ContentType:   contentType,
		ContentLength: r.ContentLength,
		Auth:          r.Header.Get("Authorization"),
		Range:         r.Header.Get("Range"),
		Body:          body,
	})
}

func formParts(raw []byte, boundary string) string {
	var b strings.Builder

	mr := multipart.NewReader(bytes.NewReader(raw), boundary)
	for {
		part, err := mr.NextPart()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				fmt.Fprintf(&b, "error: %v\n", err)
			}
			return b.String()
		}
		content, _ := io.ReadAll(part)
		fmt.Fprintf(&b, "%s (%s): %s\n", part.FormName(), part.Header.Get("Content-Type"), content)
	}
}

// putFormLength is the size of a put body carrying n data bytes. It
// mirrors the part layout PutFile sends; multipart boundaries are always
// 60 characters.
func putFormLength(t *testing.T, code string, n int) int64 {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.SetBoundary(strings.Repeat("b", 60)); err != nil {
		t.Fatal(err)
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="session"`)
	h.Set("Content-Type", "application/json")
	part, _ := mw.CreatePart(h)
	_, _ = io.WriteString(part, `{"session_id":"`+code+`"}`)

	part, _ = mw.CreateFormFile("data", code)
	_, _ = part.Write(make([]byte, n))

	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return int64(buf.Len())
}

func (rec *recorder) last(t *testing.T) recorded {
	t.Helper()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.reqs) == 0 {
		t.Fatal("no request reached the node")
	}
	return rec.reqs[len(rec.reqs)-1]
}

func (rec *recorder) count() int {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return len(rec.reqs)
}

// newTestConnector starts a node answering every request with respond.
func newTestConnector(t *testing.T, respond http.HandlerFunc, opts ...connector.Option) (*connector.Connector, *recorder) {
	t.Helper()

	rec := &recorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.add(r)
		respond(w, r)
	}))
	t.Cleanup(srv.Close)

	conn, err := connector.New(connector.Config{
		Token:    testToken,
		BucketID: bucketID,
		AppID:    appID,
		NodeAddr: srv.URL,
	}, opts...)
	if err != nil {
		t.Fatalf("building connector: %v", err)
	}

	return conn, rec
}

func respondJSON(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}
}

func respondError(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func respondFile(name, mime string, content []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(connector.HeaderFileContentLength, strconv.Itoa(len(content)))
		w.Header().Set(connector.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, name))
		w.Header().Set(connector.HeaderContentType, mime)
		_, _ = w.Write(content)
	}
}

func TestNew_Validation(t *testing.T) {
	valid := connector.Config{
		Token:    testToken,
		BucketID: bucketID,
		AppID:    appID,
		NodeAddr: "https://node.example.com:4000",
	}

	testCases := map[string]struct {
		mutate   func(cfg *connector.Config)
		expField string
	}{
		"missingToken":    {mutate: func(cfg *connector.Config) { cfg.Token = "" }, expField: "token"},
		"nilBucket":       {mutate: func(cfg *connector.Config) { cfg.BucketID = uuid.Nil }, expField: "bucket_id"},
		"nilApp":          {mutate: func(cfg *connector.Config) { cfg.AppID = uuid.Nil }, expField: "app_id"},
		"missingNodeAddr": {mutate: func(cfg *connector.Config) { cfg.NodeAddr = "" }, expField: "node_addr"},
		"noScheme":        {mutate: func(cfg *connector.Config) { cfg.NodeAddr = "node.example.com" }, expField: "node_addr"},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)

			_, err := connector.New(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.expField) {
				t.Errorf("expected error to name %q, got: %v", tc.expField, err)
			}
		})
	}

	t.Run("valid", func(t *testing.T) {
		conn, err := connector.New(valid, connector.WithTracerProvider(noop.NewTracerProvider()))
		if err != nil {
			t.Fatalf("exp nil err, got: %v", err)
		}
		if conn.AppID() != appID || conn.BucketID() != bucketID {
			t.Error("connector does not report its scope")
		}
	})

	t.Run("badOption", func(t *testing.T) {
		if _, err := connector.New(valid, connector.WithLogger(nil)); err == nil {
			t.Fatal("expected option error")
		}
		if _, err := connector.New(valid, connector.WithClientOptions(client.WithThrottle(0, 1))); err == nil {
			t.Fatal("expected client option error")
		}
	})
}

func TestConnector_Requests(t *testing.T) {
	session := &connector.UploadSessionStartResponse{Code: "9a3c4e4d-2b7a-4f5e-9a0c-0d1f2e3a4b5c", Validity: 300}

	testCases := map[string]struct {
		respond http.HandlerFunc
		call    func(ctx context.Context, c *connector.Connector) (any, error)
		exp     recorded
		expResp any
	}{
		"uploadOneshot": {
			respond: respondJSON(""),
			call: func(ctx context.Context, c *connector.Connector) (any, error) {
				return nil, c.UploadOneshot(ctx, strings.NewReader("hello"), "docs/a.txt", 5)
			},
			exp: recorded{
				Method:        http.MethodPost,
				Path:          "/api/file/upload/oneshot/" + scope + "/docs/a.txt",
				ContentType:   "application/octet-stream",
				ContentLength: 5,
				Body:          "hello",
			},
		},
		"deleteFile": {
			respond: respondJSON(""),
			call: func(ctx context.Context, c *connector.Connector) (any, error) {
				return nil, c.DeleteFile(ctx, "docs/a.txt")
			},
			exp: recorded{Method: http.MethodDelete, Path: "/api/file/delete/" + scope + "/docs/a.txt"},
		},
		"renameFile": {
			respond: respondJSON(""),
			call: func(ctx context.Context, c *connector.Connector) (any, error) {
				return nil, c.RenameFile(ctx, "docs/a.txt", "docs/b.txt")
			},
			exp: recorded{
				Method:        http.MethodPost,
				Path:          "/api/file/upload/rename/" + scope + "/docs/a.txt",
				ContentType:   "application/json",
				ContentLength: 20,
				Body:          "{\"to\":\"docs/b.txt\"}\n",
			},
		},
		"createDirectory": {
			respond: respondJSON(""),
			call: func(ctx context.Context, c *connector.Connector) (any, error) {
				return nil, c.CreateDirectory(ctx, "docs")
			},
			exp: recorded{Method: http.MethodPost, Path: "/api/directory/create/" + scope + "/docs"},
		},
		"renameDirectory": {
			respond: respondJSON(""),
			call: func(ctx context.Context, c *connector.Connector) (any, error) {
				return nil, c.RenameDirectory(ctx, "docs", "archive")
			},
			exp: recorded{
				Method:        http.MethodPost,
				Path:          "/api/directory/rename/" + scope + "/docs",
				ContentType:   "application/json",
				ContentLength: 17,
				Body:          "{\"to\":\"archive\"}\n",
			},
		},
		"deleteDirectory": {
			respond: respondJSON(""),
			call: func(ctx context.Context, c *connector.Connector) (any, error) {
				return nil, c.DeleteDirectory(ctx, "docs")
			},
			exp: recorded{Method: http.MethodDelete, Path: "/api/directory/delete/" + scope + "/docs"},
		},
		"deleteDirectoryRecursive": {
			respond: respondJSON(""),
			call: func(ctx context.Context, c *connector.Connector) (any, error) {
				return nil, c.DeleteDirectoryRecursive(ctx, "docs")
			},
			exp: recorded{
				Method:        http.MethodDelete,
				Path:          "/api/directory/delete/" + scope + "/docs",
				ContentType:   "application/json",
				ContentLength: 19,
				Body:          "{\"recursive\":true}\n",
			},
		},
		"listBucketFiles": {
			respond: respondJSON(`{"entities":[{"name":"a.txt","size":5,"is_dir":false,"created":"2024-05-01T10:00:00Z","last_modified":"2024-05-01T10:00:00Z"}]}`),
			call: func(ctx context.Context, c *connector.Connector) (any, error) {
				return c.ListBucketFiles(ctx, nil)
			},
			exp: recorded{Method: http.MethodGet, Path: "/api/bucket/list/files/" + scope},
			expResp: &connector.EntityList{Entities: []connector.Entity{{
				Name:         "a.txt",
				Size:         5,
				Created:      time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
				LastModified: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
			}}},
		},
		"listBucketDirectoriesStartOnly": {
			respond: respondJSON(`{"entities":[]}`),
			call: func(ctx context.Context, c *connector.Connector) (any, error) {
				return c.ListBucketDirectories(ctx, &connector.Range{Start: ptr[int32](5)})
			},
			exp:     recorded{Method: http.MethodGet, Path: "/api/bucket/list/directories/" + scope, RawQuery: "start=5-"},
			expResp: &connector.EntityList{Entities: []connector.Entity{}},
		},
		"listDirectory": {
			respond: respondJSON(`{"entities":[]}`),
			call: func(ctx context.Context, c *connector.Connector) (any, error) {
				return c.ListDirectory(ctx, "docs", connector.NewRange(0, 9))
			},
			exp:     recorded{Method: http.MethodGet, Path: "/api/directory/list/" + scope + "/docs", RawQuery: "start=0&end=9"},
			expResp: &connector.EntityList{Entities: []connector.Entity{}},
		},
		"listDirectoryEndOnly": {
			respond: respondJSON(`{"entities":[]}`),
			call: func(ctx context.Context, c *connector.Connector) (any, error) {
				return c.ListDirectory(ctx, "docs", &connector.Range{End: ptr[int32](3)})
			},
			exp:     recorded{Method: http.MethodGet, Path: "/api/directory/list/" + scope + "/docs", RawQuery: "end=3"},
			expResp: &connector.EntityList{Entities: []connector.Entity{}},
		},
		"stat": {
			respond: respondJSON(`{"name":"docs","dir_id":"2d4b7b8e-7f7d-4a51-9c11-1f0c9a8f6e03","size":0,"is_dir":true,"created":"2024-05-01T10:00:00Z","last_modified":"2024-05-02T10:00:00Z"}`),
			call: func(ctx context.Context, c *connector.Connector) (any, error) {
				return c.StatResource(ctx, "docs")
			},
			exp: recorded{Method: http.MethodGet, Path: "/api/bucket/stat/" + scope + "/docs"},
			expResp: &connector.Entity{
				Name:         "docs",
				DirID:        ptr(uuid.MustParse("2d4b7b8e-7f7d-4a51-9c11-1f0c9a8f6e03")),
				IsDir:        true,
				Created:      time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
				LastModified: time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC),
			},
		},
		"bucketInfo": {
			respond: respondJSON(`{"app_id":"` + appID.String() + `","id":"` + bucketID.String() + `","name":"media","encrypted":false,"atomic_upload":true,"quota":1024,"file_count":2,"space_taken":10,"created":"2024-05-01T10:00:00Z","last_modified":"2024-05-01T10:00:00Z"}`),
			call: func(ctx context.Context, c *connector.Connector) (any, error) {
				return c.FetchBucketInfo(ctx)
			},
			exp: recorded{Method: http.MethodGet, Path: "/api/bucket/info/" + scope},
			expResp: &connector.BucketDto{
				AppID:        appID,
				ID:           bucketID,
				Name:         "media",
				AtomicUpload: true,
				Quota:        1024,
				FileCount:    2,
				SpaceTaken:   10,
				Created:      time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
				LastModified: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
			},
		},
		"startSession": {
			respond: respondJSON(`{"code":"` + session.Code + `","validity":300,"uploaded":0}`),
			call: func(ctx context.Context, c *connector.Connector) (any, error) {
				return c.StartUploadSession(ctx, "big.bin", 10<<20)
			},
			exp: recorded{
				Method:        http.MethodPost,
				Path:          "/api/file/upload/oneshot/" + scope + "/big.bin",
				ContentType:   "application/json",
				ContentLength: 18,
				Body:          "{\"size\":10485760}\n",
			},
			expResp: &connector.UploadSessionStartResponse{Code: session.Code, Validity: 300},
		},
		"resumeSession": {
			respond: respondJSON(`{"uploaded_size":4194304}`),
			call: func(ctx context.Context, c *connector.Connector) (any, error) {
				return c.ResumeUploadSession(ctx, session)
			},
			exp: recorded{
				Method:        http.MethodPost,
				Path:          "/api/file/upload/resume/" + scope,
				ContentType:   "application/json",
				ContentLength: 54,
				Body:          "{\"session_id\":\"" + session.Code + "\"}\n",
			},
			expResp: &connector.UploadSessionResumeResponse{UploadedSize: 4_194_304},
		},
		"putFile": {
			respond: respondJSON(""),
			call: func(ctx context.Context, c *connector.Connector) (any, error) {
				return nil, c.PutFile(ctx, session, io.NopCloser(strings.NewReader("chunk")))
			},
			exp: recorded{
				Method:        http.MethodPost,
				Path:          "/api/file/upload/put/" + scope + "/" + session.Code,
				ContentType:   "multipart/form-data",
				ContentLength: -1,
				Body: "session (application/json): {\"session_id\":\"" + session.Code + "\"}\n" +
					"data (application/octet-stream): chunk\n",
			},
		},
		"putFileSized": {
			respond: respondJSON(""),
			call: func(ctx context.Context, c *connector.Connector) (any, error) {
				return nil, c.PutFileSized(ctx, session, strings.NewReader("chunk"), 5)
			},
			exp: recorded{
				Method:        http.MethodPost,
				Path:          "/api/file/upload/put/" + scope + "/" + session.Code,
				ContentType:   "multipart/form-data",
				ContentLength: putFormLength(t, session.Code, 5),
				Body: "session (application/json): {\"session_id\":\"" + session.Code + "\"}\n" +
					"data (application/octet-stream): chunk\n",
			},
		},
		"escapedPath": {
			respond: respondJSON(""),
			call: func(ctx context.Context, c *connector.Connector) (any, error) {
				return nil, c.DeleteFile(ctx, "/my docs/50% off?.txt")
			},
			exp: recorded{Method: http.MethodDelete, Path: "/api/file/delete/" + scope + "/my%20docs/50%25%20off%3F.txt"},
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			conn, rec := newTestConnector(t, tc.respond)

			resp, err := tc.call(t.Context(), conn)
			if err != nil {
				t.Fatalf("exp nil err, got: %v", err)
			}

			exp := tc.exp
			exp.Auth = "Bearer " + testToken
			if diff := cmp.Diff(exp, rec.last(t)); diff != "" {
				t.Errorf("request mismatch (-want +got):\n%s", diff)
			}

			if tc.expResp != nil {
				if diff := cmp.Diff(tc.expResp, resp); diff != "" {
					t.Errorf("response mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}
}

func TestConnector_RemoteErrors(t *testing.T) {
	testCases := map[string]struct {
		status  int
		body    string
		expKind connector.NodeClientError
	}{
		"notFound":      {status: http.StatusNotFound, body: `{"code":"NotFound"}`, expKind: connector.NotFound},
		"entityExists":  {status: http.StatusConflict, body: `{"code":"EntityExists"}`, expKind: connector.EntityExists},
		"notEmpty":      {status: http.StatusConflict, body: `{"code":"NotEmpty"}`, expKind: connector.NotEmpty},
		"badAuth":       {status: http.StatusUnauthorized, body: `{"code":"BadAuth"}`, expKind: connector.BadAuth},
		"noSuchSession": {status: http.StatusNotFound, body: `{"code":"NoSuchSession"}`, expKind: connector.NoSuchSession},
		"storage":       {status: http.StatusInsufficientStorage, body: `{"code":"InsufficientStorage"}`, expKind: connector.InsufficientStorage},
		"range":         {status: http.StatusRequestedRangeNotSatisfiable, body: `{"code":"RangeUnsatisfiable"}`, expKind: connector.RangeUnsatisfiable},
		"unparseable":   {status: http.StatusBadGateway, body: `<html>bad gateway</html>`, expKind: connector.InternalError},
		"emptyBody":     {status: http.StatusInternalServerError, body: ``, expKind: connector.InternalError},
		"unknownKind":   {status: http.StatusBadRequest, body: `{"code":"Quota"}`, expKind: connector.InternalError},
	}

	ops := map[string]func(ctx context.Context, c *connector.Connector) error{
		"DeleteFile": func(ctx context.Context, c *connector.Connector) error {
			return c.DeleteFile(ctx, "a.txt")
		},
		"StatResource": func(ctx context.Context, c *connector.Connector) error {
			_, err := c.StatResource(ctx, "a.txt")
			return err
		},
		"DownloadFile": func(ctx context.Context, c *connector.Connector) error {
			_, err := c.DownloadFile(ctx, "a.txt")
			return err
		},
		"StartUploadSession": func(ctx context.Context, c *connector.Connector) error {
			_, err := c.StartUploadSession(ctx, "a.txt", 10)
			return err
		},
	}

	for name, tc := range testCases {
		for opName, op := range ops {
			t.Run(name+"/"+opName, func(t *testing.T) {
				conn, _ := newTestConnector(t, respondError(tc.status, tc.body))

				err := op(t.Context(), conn)

				re, ok := errors.AsType[*connector.RemoteError](err)
				if !ok {
					t.Fatalf("exp *RemoteError, got %T: %v", err, err)
				}
				if re.Code != tc.expKind {
					t.Errorf("exp kind %v, got %v", tc.expKind, re.Code)
				}
				if re.StatusCode != tc.status {
					t.Errorf("exp status %d, got %d", tc.status, re.StatusCode)
				}
				if !errors.Is(err, tc.expKind) {
					t.Errorf("errors.Is(err, %v) = false", tc.expKind)
				}
				if connector.IsLocal(err) {
					t.Error("a node answer must never be reported as local")
				}
				if got := connector.Retryable(err); got != (tc.expKind == connector.InternalError) {
					t.Errorf("unexpected Retryable %t", got)
				}
			})
		}
	}
}

func TestConnector_LocalErrors(t *testing.T) {
	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		addr := srv.URL
		srv.Close()

		conn, err := connector.New(connector.Config{Token: testToken, BucketID: bucketID, AppID: appID, NodeAddr: addr})
		if err != nil {
			t.Fatal(err)
		}

		err = conn.CreateDirectory(t.Context(), "docs")
		if !connector.IsLocal(err) {
			t.Fatalf("exp *LocalError, got %T: %v", err, err)
		}
		if connector.Retryable(err) {
			t.Error("local errors are never retryable")
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		conn, rec := newTestConnector(t, respondJSON(""))

		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		err := conn.DeleteFile(ctx, "a.txt")
		if !connector.IsLocal(err) || !errors.Is(err, context.Canceled) {
			t.Fatalf("exp local error wrapping context.Canceled, got %v", err)
		}
		if rec.count() != 0 {
			t.Error("cancelled call must not reach the node")
		}
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		defer close(release)

		conn, _ := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}, connector.WithClientOptions(client.WithTimeout(50*time.Millisecond)))

		err := conn.CreateDirectory(t.Context(), "docs")
		if !connector.IsLocal(err) {
			t.Fatalf("exp *LocalError, got %T: %v", err, err)
		}
	})

	t.Run("undecodableSuccessBody", func(t *testing.T) {
		conn, _ := newTestConnector(t, respondJSON(`{"entities":`))

		_, err := conn.ListBucketFiles(t.Context(), nil)
		if !connector.IsLocal(err) {
			t.Fatalf("exp *LocalError, got %T: %v", err, err)
		}
	})

	t.Run("negativeSize", func(t *testing.T) {
		conn, rec := newTestConnector(t, respondJSON(""))

		err := conn.UploadOneshot(t.Context(), strings.NewReader("x"), "a.txt", -1)
		if !errors.Is(err, connector.ErrInvalidSize) || !connector.IsLocal(err) {
			t.Fatalf("exp local ErrInvalidSize, got %v", err)
		}

		err = conn.PutFileSized(t.Context(), &connector.UploadSessionStartResponse{Code: uuid.NewString()}, strings.NewReader("x"), -3)
		if !errors.Is(err, connector.ErrInvalidSize) || !connector.IsLocal(err) {
			t.Fatalf("exp local ErrInvalidSize, got %v", err)
		}

		if rec.count() != 0 {
			t.Error("rejected calls must not reach the node")
		}
	})

	t.Run("nilReader", func(t *testing.T) {
		conn, rec := newTestConnector(t, respondJSON(""))

		err := conn.PutFile(t.Context(), &connector.UploadSessionStartResponse{Code: uuid.NewString()}, nil)
		if !errors.Is(err, connector.ErrNilReader) || !connector.IsLocal(err) {
			t.Fatalf("exp local ErrNilReader, got %v", err)
		}
		if rec.count() != 0 {
			t.Error("rejected calls must not reach the node")
		}
	})
}

func TestConnector_SessionCode(t *testing.T) {
	testCases := map[string]struct {
		session *connector.UploadSessionStartResponse
		expErr  error
	}{
		"notUUID": {
			session: &connector.UploadSessionStartResponse{Code: "abc", Validity: 60},
			expErr:  connector.ErrInvalidSessionCode,
		},
		"empty": {
			session: &connector.UploadSessionStartResponse{},
			expErr:  connector.ErrInvalidSessionCode,
		},
		"nil": {
			expErr: connector.ErrNilSession,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			conn, rec := newTestConnector(t, respondJSON(`{"uploaded_size":0}`))

			_, err := conn.ResumeUploadSession(t.Context(), tc.session)
			if !errors.Is(err, tc.expErr) || !connector.IsLocal(err) {
				t.Errorf("resume: exp local %v, got %v", tc.expErr, err)
			}

			err = conn.PutFile(t.Context(), tc.session, strings.NewReader("data"))
			if !errors.Is(err, tc.expErr) || !connector.IsLocal(err) {
				t.Errorf("put: exp local %v, got %v", tc.expErr, err)
			}

			if rec.count() != 0 {
				t.Errorf("exp no request, node saw %d", rec.count())
			}
		})
	}
}

func TestConnector_SessionResume(t *testing.T) {
	const total = 10 << 20

	data := make([]byte, total)
	for i := range data {
		data[i] = byte(i % 251)
	}

	code := uuid.NewString()

	var (
		mu       sync.Mutex
		received []byte
	)
	conn, _ := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasPrefix(r.URL.Path, "/api/file/upload/oneshot/"):
			_ = json.NewEncoder(w).Encode(connector.UploadSessionStartResponse{Code: code, Validity: 300})

		case strings.HasPrefix(r.URL.Path, "/api/file/upload/put/"):
			chunk, err := readPutData(r, code)
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			mu.Lock()
			received = append(received, chunk...)
			mu.Unlock()

		case strings.HasPrefix(r.URL.Path, "/api/file/upload/resume/"):
			mu.Lock()
			n := len(received)
			mu.Unlock()
			_ = json.NewEncoder(w).Encode(connector.UploadSessionResumeResponse{UploadedSize: uint64(n)})
		}
	})

	session, err := conn.StartUploadSession(t.Context(), "big.bin", total)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if session.Uploaded != 0 {
		t.Fatalf("fresh session must start at 0, got %d", session.Uploaded)
	}
	if session.ValidFor() != 300*time.Second {
		t.Errorf("exp validity 5m, got %v", session.ValidFor())
	}

	// The first 4MB arrive, then the uploader goes away.
	if err := conn.PutFileSized(t.Context(), session, bytes.NewReader(data[:4<<20]), 4<<20); err != nil {
		t.Fatalf("first put: %v", err)
	}

	resumed, err := conn.ResumeUploadSession(t.Context(), session)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.UploadedSize != 4_194_304 {
		t.Fatalf("exp resume offset 4194304, got %d", resumed.UploadedSize)
	}

	if err := conn.PutFile(t.Context(), session, bytes.NewReader(data[resumed.UploadedSize:])); err != nil {
		t.Fatalf("second put: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if !bytes.Equal(received, data) {
		t.Errorf("node holds %d bytes that differ from the source", len(received))
	}
}

// readPutData returns the data part of a put naming session code.
func readPutData(r *http.Request, code string) ([]byte, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, err
	}

	meta, err := mr.NextPart()
	if err != nil {
		return nil, err
	}
	var req connector.UploadSessionPutRequest
	if err := json.NewDecoder(meta).Decode(&req); err != nil {
		return nil, err
	}
	if req.SessionID.String() != code {
		return nil, fmt.Errorf("put names session %s", req.SessionID)
	}

	data, err := mr.NextPart()
	if err != nil {
		return nil, err
	}
	return io.ReadAll(data)
}

func TestConnector_DownloadFile(t *testing.T) {
	content := []byte("%PDF-1.7 quarterly numbers")

	conn, rec := newTestConnector(t, respondFile("report.pdf", "application/pdf", content))

	fr, err := conn.DownloadFile(t.Context(), "reports/report.pdf")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer fr.Close()

	if fr.Length != uint64(len(content)) || fr.Name != "report.pdf" || fr.Mime != "application/pdf" {
		t.Errorf("unexpected metadata: %d %q %q", fr.Length, fr.Name, fr.Mime)
	}

	got, err := io.ReadAll(fr)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("exp %q, got %q", content, got)
	}

	if r := rec.last(t); r.Range != "" {
		t.Errorf("plain download must not send a Range header, got %q", r.Range)
	}
}

func TestConnector_DownloadFileRange(t *testing.T) {
	testCases := map[string]struct {
		rng      connector.DownloadRange
		expRange string
	}{
		"full":      {rng: connector.FullRange(), expRange: "bytes=0-"},
		"bounded":   {rng: connector.NewDownloadRange(2, 5), expRange: "bytes=2-5"},
		"startOnly": {rng: connector.DownloadRange{Start: ptr[uint64](3)}, expRange: "bytes=3-"},
		"suffix":    {rng: connector.DownloadRange{End: ptr[uint64](4)}, expRange: "bytes=-4"},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			conn, rec := newTestConnector(t, respondFile("a.txt", "text/plain", []byte("0123456789")))

			fr, err := conn.DownloadFileRange(t.Context(), "a.txt", tc.rng)
			if err != nil {
				t.Fatalf("download: %v", err)
			}
			fr.Close()

			if got := rec.last(t).Range; got != tc.expRange {
				t.Errorf("exp Range %q, got %q", tc.expRange, got)
			}
		})
	}
}

// trackedBody records whether the connector touched the body.
type trackedBody struct {
	reads  atomic.Int32
	closed atomic.Bool
}

func (b *trackedBody) Read(p []byte) (int, error) {
	b.reads.Add(1)
	return 0, io.EOF
}

func (b *trackedBody) Close() error {
	b.closed.Store(true)
	return nil
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func TestConnector_DownloadMissingHeaders(t *testing.T) {
	testCases := map[string]struct {
		drop   string
		set    map[string]string
		expErr error
	}{
		"noLength":      {drop: connector.HeaderFileContentLength, expErr: connector.ErrMissingHeader},
		"noDisposition": {drop: connector.HeaderContentDisposition, expErr: connector.ErrMissingHeader},
		"noType":        {drop: connector.HeaderContentType, expErr: connector.ErrMissingHeader},
		"badLength": {
			set:    map[string]string{connector.HeaderFileContentLength: "ten"},
			expErr: connector.ErrInvalidHeader,
		},
		"noFilename": {
			set:    map[string]string{connector.HeaderContentDisposition: "inline"},
			expErr: connector.ErrInvalidHeader,
		},
	}

	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			body := &trackedBody{}

			transport := roundTripFunc(func(r *http.Request) (*http.Response, error) {
				h := http.Header{}
				h.Set(connector.HeaderFileContentLength, "10")
				h.Set(connector.HeaderContentDisposition, `attachment; filename="a.txt"`)
				h.Set(connector.HeaderContentType, "text/plain")
				h.Del(tc.drop)
				for k, v := range tc.set {
					h.Set(k, v)
				}
				return &http.Response{StatusCode: http.StatusOK, Header: h, Body: body, Request: r}, nil
			})

			conn, err := connector.New(connector.Config{
				Token:    testToken,
				BucketID: bucketID,
				AppID:    appID,
				NodeAddr: "http://node.invalid",
			}, connector.WithClientOptions(client.WithTransport(transport)))
			if err != nil {
				t.Fatal(err)
			}

			fr, err := conn.DownloadFile(t.Context(), "a.txt")
			if fr != nil {
				t.Error("exp no FileResponse for a malformed answer")
			}
			if !errors.Is(err, tc.expErr) || !connector.IsLocal(err) {
				t.Fatalf("exp local %v, got %v", tc.expErr, err)
			}
			if body.reads.Load() != 0 {
				t.Error("body must not be read once headers are rejected")
			}
			if !body.closed.Load() {
				t.Error("body must be closed once headers are rejected")
			}
		})
	}
}

func TestFileResponse_SaveTo(t *testing.T) {
	content := []byte("saved to disk")
	sum := sha256.Sum256(content)

	conn, _ := newTestConnector(t, respondFile("note.txt", "text/plain", content))

	t.Run("checksum", func(t *testing.T) {
		fr, err := conn.DownloadFile(t.Context(), "note.txt")
		if err != nil {
			t.Fatalf("download: %v", err)
		}

		dest := filepath.Join(t.TempDir(), fr.Name)
		if err := fr.SaveTo(t.Context(), dest, connector.WithChecksum(sha256.New(), hex.EncodeToString(sum[:]))); err != nil {
			t.Fatalf("save: %v", err)
		}

		got, err := os.ReadFile(dest)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, content) {
			t.Errorf("exp %q, got %q", content, got)
		}
	})

	t.Run("checksumMismatch", func(t *testing.T) {
		fr, err := conn.DownloadFile(t.Context(), "note.txt")
		if err != nil {
			t.Fatalf("download: %v", err)
		}

		dest := filepath.Join(t.TempDir(), fr.Name)
		err = fr.SaveTo(t.Context(), dest, connector.WithChecksum(sha256.New(), strings.Repeat("0", 64)))
		if err == nil {
			t.Fatal("expected checksum error")
		}
		if _, statErr := os.Stat(dest); !errors.Is(statErr, os.ErrNotExist) {
			t.Error("a rejected file must not appear at the destination")
		}
	})
}

func TestConnector_ClientOptions(t *testing.T) {
	reg := prometheus.NewRegistry()

	var ua atomic.Value
	conn, _ := newTestConnector(t, func(w http.ResponseWriter, r *http.Request) {
		ua.Store(r.Header.Get("User-Agent"))
	}, connector.WithClientOptions(
		client.WithUserAgent("meowith-test/1.0"),
		client.WithMetrics(reg),
		client.WithThrottle(100, 10),
		// The config token wins over one passed through.
		client.WithBearerToken("other"),
	))

	for range 3 {
		if err := conn.CreateDirectory(t.Context(), "docs"); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	if got := ua.Load(); got != "meowith-test/1.0" {
		t.Errorf("exp user agent, got %v", got)
	}

	n, err := testutil.GatherAndCount(reg, "meowith_connector_requests_total")
	if err != nil {
		t.Fatalf("gathering: %v", err)
	}
	if n != 1 {
		t.Errorf("exp one series, got %d", n)
	}
}

func TestConnector_BearerToken(t *testing.T) {
	conn, rec := newTestConnector(t, respondJSON(`{"entities":[]}`), connector.WithClientOptions(client.WithBearerToken("other")))

	if _, err := conn.ListBucketFiles(t.Context(), nil); err != nil {
		t.Fatal(err)
	}
	if err := conn.DeleteFile(t.Context(), "a"); err != nil {
		t.Fatal(err)
	}

	for _, r := range rec.reqs {
		if r.Auth != "Bearer "+testToken {
			t.Errorf("%s %s: exp config token, got %q", r.Method, r.Path, r.Auth)
		}
	}
}

func TestConnector_Logging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	conn, _ := newTestConnector(t, respondError(http.StatusNotFound, `{"code":"NotFound"}`), connector.WithLogger(logger))

	_ = conn.DeleteFile(t.Context(), "a.txt")

	out := buf.String()
	for _, want := range []string{"connector operation", "op=DeleteFile", "status=404"} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %q: %s", want, out)
		}
	}
}

func TestConnector_Concurrent(t *testing.T) {
	conn, rec := newTestConnector(t, respondJSON(`{"entities":[]}`))

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Go(func() {
			if _, err := conn.ListDirectory(t.Context(), fmt.Sprintf("dir-%d", i), nil); err != nil {
				t.Errorf("list %d: %v", i, err)
			}
		})
	}
	wg.Wait()

	if rec.count() != 16 {
		t.Errorf("exp 16 requests, got %d", rec.count())
	}
}
