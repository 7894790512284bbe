// Package reactant assembles the reactive notebook execution core: the
// topology engine, the notebook coordinator, the evaluator bridge and the
// session surfaces, wired together from configuration.
package reactant

import (
	"context"
	"log/slog"
	"net/http"
	"os/exec"

	"github.com/reactant-dev/reactant/internal/application/coordinator"
	"github.com/reactant-dev/reactant/internal/infrastructure/api/rest"
	"github.com/reactant-dev/reactant/internal/infrastructure/config"
	"github.com/reactant-dev/reactant/internal/infrastructure/kernel"
	"github.com/reactant-dev/reactant/internal/infrastructure/storage"
	"github.com/reactant-dev/reactant/internal/infrastructure/websocket"
)

// Version is the release version of the core.
const Version = "0.1.0"

// Core is the assembled engine behind one server process.
type Core struct {
	Coordinator *coordinator.Coordinator
	Bridge      *kernel.Bridge
	Hub         *websocket.Hub

	cfg       *config.Config
	logger    *slog.Logger
	evaluator *exec.Cmd
}

// NewCore wires the engine from configuration: snapshot store (Postgres when
// a DSN is configured, in-memory otherwise), evaluator bridge, coordinator
// and session hub.
func NewCore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Core, error) {
	var store storage.NotebookStore
	if cfg.DatabaseDSN != "" {
		bunStore := storage.NewBunStore(cfg.DatabaseDSN)
		if err := bunStore.InitSchema(ctx); err != nil {
			return nil, err
		}
		store = bunStore
		logger.Info("using postgres snapshot store")
	} else {
		store = storage.NewMemoryStore()
		logger.Info("using in-memory snapshot store")
	}

	bridge := kernel.NewBridge(cfg.Evaluator.RequestEndpoint, cfg.Evaluator.StreamEndpoint)
	coord := coordinator.New(bridge, store, logger)
	hub := websocket.NewHub(bridge, logger)

	return &Core{
		Coordinator: coord,
		Bridge:      bridge,
		Hub:         hub,
		cfg:         cfg,
		logger:      logger,
	}, nil
}

// Start launches the evaluator process when configured and starts the bridge
// worker and session hub.
func (c *Core) Start() error {
	evaluator, err := kernel.SpawnEvaluator(c.cfg.Evaluator.SpawnCommand, c.logger)
	if err != nil {
		return err
	}
	c.evaluator = evaluator

	go c.Bridge.Run()
	go c.Hub.Run()
	return nil
}

// Handler returns the full HTTP surface: the REST API plus the WebSocket
// session endpoint.
func (c *Core) Handler() http.Handler {
	var auth websocket.Authenticator = websocket.AllowAll{}
	if c.cfg.JWTSecret != "" {
		auth = websocket.NewJWTAuth(c.cfg.JWTSecret)
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", websocket.NewHandler(c.Hub, c.Coordinator, auth, c.logger))
	mux.Handle("/", rest.NewServer(c.Coordinator, c.logger))
	return mux
}

// Shutdown stops the bridge worker and drops the evaluator connections. The
// evaluator process itself is left to the operating system.
func (c *Core) Shutdown() {
	c.Bridge.Close()
}
