package tasks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/coursemarket/internal/config"
)

var ErrAlreadyStarted = errors.New("task queue already started")

// Client runs the maintenance queues on backlite. The queue always lives in
// its own sqlite file, whichever driver serves the marketplace data.
type Client struct {
	backlite *backlite.Client
	queueDB  *sql.DB
	workers  int

	mu      sync.Mutex
	queues  []string
	started bool
}

// NewClient opens (or creates) the queue database that belongs to
// mainDBPath and installs the backlite schema.
func NewClient(mainDBPath string, cfg config.Tasks) (*Client, error) {
	cfg = withDefaults(cfg)
	path := TasksDBPath(mainDBPath)

	queueDB, err := sql.Open("sqlite3", path+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open task queue %s: %w", path, err)
	}
	queueDB.SetMaxOpenConns(cfg.Workers + 5)
	queueDB.SetMaxIdleConns(cfg.Workers + 2)
	queueDB.SetConnMaxLifetime(time.Hour)

	bl, err := backlite.NewClient(backlite.ClientConfig{
		DB:              queueDB,
		NumWorkers:      cfg.Workers,
		ReleaseAfter:    cfg.ReleaseAfter,
		CleanupInterval: cfg.CleanupInterval,
		Logger:          taskLogger{},
	})
	if err == nil {
		err = bl.Install()
	}
	if err != nil {
		queueDB.Close()
		return nil, fmt.Errorf("set up task queue %s: %w", path, err)
	}

	return &Client{backlite: bl, queueDB: queueDB, workers: cfg.Workers}, nil
}

// Register adds queues. Queues registered after Start are ignored by
// backlite, so Register refuses them.
func (c *Client) Register(queues ...backlite.Queue) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		log.Printf("tasks: %v", ErrAlreadyStarted)
		return
	}
	for _, q := range queues {
		c.backlite.Register(q)
		c.queues = append(c.queues, q.Config().Name)
	}
}

// Queues returns the names of the registered queues in registration order.
func (c *Client) Queues() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.queues...)
}

// Start runs the workers until ctx is cancelled or Stop is called. It does
// not block.
func (c *Client) Start(ctx context.Context) {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return
	}
	c.started = true
	names := strings.Join(c.queues, ", ")
	c.mu.Unlock()

	log.Printf("tasks: %d workers on queues [%s]", c.workers, names)
	c.backlite.Start(ctx)
}

// Stop waits for running tasks until ctx expires. It reports whether every
// worker finished in time.
func (c *Client) Stop(ctx context.Context) bool {
	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if !started {
		return true
	}

	if !c.backlite.Stop(ctx) {
		log.Println("tasks: stop timed out, some tasks may not have completed")
		return false
	}
	log.Println("tasks: stopped")
	return true
}

// Close releases the queue database. Call it after Stop.
func (c *Client) Close() error {
	return c.queueDB.Close()
}

// Add starts an operation to enqueue one or more tasks.
func (c *Client) Add(tasks ...backlite.Task) *backlite.TaskAddOp {
	return c.backlite.Add(tasks...)
}

// Enqueue saves a single task and returns its id.
func (c *Client) Enqueue(task backlite.Task) (string, error) {
	ids, err := c.backlite.Add(task).Save()
	if err != nil {
		return "", fmt.Errorf("enqueue %s: %w", task.Config().Name, err)
	}
	return ids[0], nil
}

func (c *Client) Status(ctx context.Context, taskID string) (backlite.TaskStatus, error) {
	return c.backlite.Status(ctx, taskID)
}

// TasksDBPath derives the queue file from the main database path:
// data/coursemarket.db becomes data/coursemarket-tasks.db.
func TasksDBPath(mainDBPath string) string {
	ext := filepath.Ext(mainDBPath)
	return strings.TrimSuffix(mainDBPath, ext) + "-tasks" + ext
}

// taskLogger routes backlite's logging through the standard logger.
type taskLogger struct{}

func (taskLogger) Info(message string, params ...any) {
	log.Printf("[TASK] "+message, params...)
}

func (taskLogger) Error(message string, params ...any) {
	log.Printf("[TASK ERROR] "+message, params...)
}
