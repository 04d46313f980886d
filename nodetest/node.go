package nodetest

import (
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"

	"github.com/meowith/connector-go/internal/web/middleware"
	"github.com/meowith/connector-go/internal/web/mux"
)

const tracerName = "github.com/meowith/connector-go/nodetest"

// Node is an in-memory node serving one bucket of one application.
// It is safe for concurrent use.
type Node struct {
	token      string
	appID      uuid.UUID
	bucketID   uuid.UUID
	bucketName string
	quota      int64
	validity   time.Duration
	now        func() time.Time
	logger     *slog.Logger
	handler    http.Handler

	mu       sync.Mutex
	created  time.Time
	modified time.Time
	dirs     map[string]*dirEntry
	files    map[string]*fileEntry
	sessions map[uuid.UUID]*session
}

type dirEntry struct {
	id       uuid.UUID
	created  time.Time
	modified time.Time
}

type fileEntry struct {
	data     []byte
	created  time.Time
	modified time.Time
}

type session struct {
	id         uuid.UUID
	path       string
	size       uint64
	data       []byte
	lastActive time.Time
}

// NewNode creates an empty node.
func NewNode(optFns ...Option) *Node {
	opts := options{
		token:      "nodetest-token",
		appID:      uuid.New(),
		bucketID:   uuid.New(),
		bucketName: "nodetest",
		quota:      1 << 30,
		validity:   time.Hour,
		now:        time.Now,
		logger:     slog.New(slog.DiscardHandler),
		tp:         otel.GetTracerProvider(),
	}
	for _, opt := range optFns {
		opt(&opts)
	}

	n := &Node{
		token:      opts.token,
		appID:      opts.appID,
		bucketID:   opts.bucketID,
		bucketName: opts.bucketName,
		quota:      opts.quota,
		validity:   opts.validity,
		now:        opts.now,
		logger:     opts.logger,
		dirs:       make(map[string]*dirEntry),
		files:      make(map[string]*fileEntry),
		sessions:   make(map[uuid.UUID]*session),
	}
	n.created = n.now().UTC()
	n.modified = n.created

	app := mux.New(
		mux.WithLogger(n.logger),
		mux.WithTracer(opts.tp.Tracer(tracerName)),
		mux.WithMiddleware(
			middleware.Logger(n.logger),
			middleware.Errors(n.logger),
			middleware.Authenticate(n.token),
			middleware.Panics(),
		),
	)
	n.routes(app)
	n.handler = app

	return n
}

// Handler serves the node's HTTP API.
func (n *Node) Handler() http.Handler {
	return n.handler
}

// Token returns the bearer token the node accepts.
func (n *Node) Token() string { return n.token }

// AppID returns the application the node serves.
func (n *Node) AppID() uuid.UUID { return n.appID }

// BucketID returns the bucket the node serves.
func (n *Node) BucketID() uuid.UUID { return n.bucketID }

// File returns a copy of the stored file at path.
func (n *Node) File(path string) ([]byte, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	f, ok := n.files[path]
	if !ok {
		return nil, false
	}
	return slices.Clone(f.data), true
}

// PutFile stores data at path directly, creating parent directories.
// Quota is not enforced.
func (n *Node) PutFile(path string, data []byte) error {
	p, err := cleanPath(path)
	if err != nil {
		return err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	return n.storeLocked(p, slices.Clone(data), n.now().UTC())
}

// Sessions reports the number of open upload sessions.
func (n *Node) Sessions() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return len(n.sessions)
}

// SpaceTaken reports the bytes held by stored files.
func (n *Node) SpaceTaken() int64 {
	n.mu.Lock()
	defer n.mu.Unlock()

	return n.spaceTakenLocked()
}

func (n *Node) routes(app *mux.App) {
	api := app.Mount("/api")
	api.Use(n.scope)

	file := api.Mount("/file")
	file.Post("/upload/oneshot/{app}/{bucket}/{path...}", n.upload)
	file.Post("/upload/resume/{app}/{bucket}", n.resumeSession)
	file.Post("/upload/put/{app}/{bucket}/{code}", n.put)
	file.Post("/upload/rename/{app}/{bucket}/{path...}", n.renameFile)
	file.Delete("/delete/{app}/{bucket}/{path...}", n.deleteFile)
	file.Get("/download/{app}/{bucket}/{path...}", n.download)

	dir := api.Mount("/directory")
	dir.Post("/create/{app}/{bucket}/{path...}", n.createDirectory)
	dir.Post("/rename/{app}/{bucket}/{path...}", n.renameDirectory)
	dir.Delete("/delete/{app}/{bucket}/{path...}", n.deleteDirectory)
	dir.Get("/list/{app}/{bucket}", n.listDirectory)
	dir.Get("/list/{app}/{bucket}/{path...}", n.listDirectory)

	bucket := api.Mount("/bucket")
	bucket.Get("/list/files/{app}/{bucket}", n.listFiles)
	bucket.Get("/list/directories/{app}/{bucket}", n.listDirectories)
	bucket.Get("/stat/{app}/{bucket}/{path...}", n.stat)
	bucket.Get("/info/{app}/{bucket}", n.info)
}
