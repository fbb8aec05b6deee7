package storagenode

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/closo/backend/internal/config"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Server is one storage node: authenticated byte storage on local disk,
// spoken to exclusively by the backend's storage gateway.
type Server struct {
	cfg   *config.NodeConfig
	store *Store
	app   *fiber.App
}

func NewServer(cfg *config.NodeConfig) (*Server, error) {
	store, err := NewStore(cfg.StorageDir)
	if err != nil {
		return nil, err
	}

	app := fiber.New(fiber.Config{
		AppName:      "Closo Storage Node",
		ServerHeader: "closo-node",
		BodyLimit:    50 * 1024 * 1024, // 50MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"detail": err.Error(),
			})
		},
	})
	app.Use(recover.New())

	s := &Server{cfg: cfg, store: store, app: app}
	s.registerRoutes()
	return s, nil
}

// App exposes the Fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen starts serving on the configured port.
func (s *Server) Listen() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	log.Printf("Storage node %s serving %s on %s", s.cfg.NodeID, s.store.Dir(), addr)
	return s.app.Listen(addr)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// apiKeyRequired rejects requests without the shared secret before any
// filesystem access. An unauthenticated caller learns nothing about whether
// a file exists.
func (s *Server) apiKeyRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Get("X-API-Key") != s.cfg.SecretKey {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"detail": "Invalid API key",
			})
		}
		return c.Next()
	}
}

func (s *Server) registerRoutes() {
	s.app.Get("/health", s.health)

	files := s.app.Group("/files", s.apiKeyRequired())
	files.Post("/", s.uploadFile)
	files.Get("/", s.listFiles)
	files.Get("/:id", s.getFile)
	files.Delete("/:id", s.deleteFile)
}

func (s *Server) health(c *fiber.Ctx) error {
	stats, err := s.store.Stats()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"detail": "Failed to read storage directory",
		})
	}
	return c.JSON(fiber.Map{
		"status":           "healthy",
		"node_id":          s.cfg.NodeID,
		"storage_path":     s.store.Dir(),
		"nb_files":         stats.NbFiles,
		"total_size_bytes": stats.TotalSizeBytes,
	})
}

func (s *Server) uploadFile(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"detail": "No file uploaded",
		})
	}

	f, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"detail": "Failed to read uploaded file",
		})
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"detail": "Failed to read uploaded file",
		})
	}

	fileID, size, err := s.store.Put(data, fileHeader.Filename)
	if err != nil {
		log.Printf("Node %s: failed to save file: %v", s.cfg.NodeID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"detail": "Failed to save file",
		})
	}

	return c.JSON(fiber.Map{
		"id":       fileID,
		"filename": fileHeader.Filename,
		"node_id":  s.cfg.NodeID,
		"size":     size,
	})
}

func (s *Server) getFile(c *fiber.Ctx) error {
	fileID := c.Params("id")

	path, contentType, err := s.store.Get(fileID)
	if err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"detail": "File not found",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"detail": "Failed to read file",
		})
	}

	c.Set("Content-Type", contentType)
	return c.SendFile(path)
}

func (s *Server) deleteFile(c *fiber.Ctx) error {
	fileID := c.Params("id")

	if err := s.store.Delete(fileID); err != nil {
		if errors.Is(err, ErrFileNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"detail": "File not found",
			})
		}
		log.Printf("Node %s: failed to delete file %s: %v", s.cfg.NodeID, fileID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"detail": "Failed to delete file",
		})
	}

	return c.JSON(fiber.Map{
		"message": "File deleted",
		"id":      fileID,
	})
}

func (s *Server) listFiles(c *fiber.Ctx) error {
	files, err := s.store.List()
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"detail": "Failed to list files",
		})
	}
	return c.JSON(fiber.Map{
		"node_id": s.cfg.NodeID,
		"files":   files,
	})
}
