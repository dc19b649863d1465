// Package api exposes the salvage engine as a small recoveries service.
//
// Uploads are spooled to disk, run through the recovery cascade and persisted
// as SMF archives keyed by uuid. Responses are JSON except the geometry
// exports, which stream STL or OBJ bytes.
package api

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/labstack/echo/v5"

	"github.com/samcharles93/salvor/internal/assemble"
	"github.com/samcharles93/salvor/internal/logger"
	"github.com/samcharles93/salvor/internal/salvage"
	"github.com/samcharles93/salvor/internal/store"
	"github.com/samcharles93/salvor/internal/version"
	"github.com/samcharles93/salvor/pkg/objfile"
	"github.com/samcharles93/salvor/pkg/stl"
)

// DefaultMaxUploadBytes bounds the request body of one recovery upload.
const DefaultMaxUploadBytes int64 = 256 << 20

// Config carries the server's collaborators. Store is required; everything
// else has a usable zero value.
type Config struct {
	Store          *store.Store
	Tunables       salvage.Tunables
	Transform      assemble.Transform
	MaxUploadBytes int64
	Logger         logger.Logger
}

type Server struct {
	store     *store.Store
	tunables  salvage.Tunables
	transform assemble.Transform
	maxUpload int64
	log       logger.Logger
}

func NewServer(cfg Config) *Server {
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}
	return &Server{
		store:     cfg.Store,
		tunables:  cfg.Tunables,
		transform: cfg.Transform,
		maxUpload: cfg.MaxUploadBytes,
		log:       cfg.Logger,
	}
}

func (s *Server) Register(e *echo.Echo) {
	e.POST("/v1/recoveries", s.handleCreateRecovery)
	e.GET("/v1/recoveries", s.handleListRecoveries)
	e.GET("/v1/recoveries/:id", s.handleGetRecovery)
	e.GET("/v1/recoveries/:id/export", s.handleExportRecovery)
	e.DELETE("/v1/recoveries/:id", s.handleDeleteRecovery)
	e.GET("/healthz", s.handleHealthz)
}

func (s *Server) handleCreateRecovery(c *echo.Context) error {
	req := c.Request()
	req.Body = http.MaxBytesReader(c.Response(), req.Body, s.maxUpload)

	file, header, err := req.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return writeError(c, http.StatusRequestEntityTooLarge, "invalid_request_error",
				fmt.Sprintf("upload larger than %d bytes", tooBig.Limit), "file", "")
		}
		return writeError(c, http.StatusBadRequest, "invalid_request_error",
			`multipart field "file" is required`, "file", "")
	}
	defer func() { _ = file.Close() }()

	tr := s.transform
	if raw := req.FormValue("options"); raw != "" {
		opts, err := decodeJSON[RecoverOptions](strings.NewReader(raw))
		if err != nil {
			return writeError(c, http.StatusBadRequest, "invalid_request_error",
				fmt.Sprintf("options: %v", err), "options", "")
		}
		tr = opts.apply(tr)
	}

	id, spool, size, err := s.store.Spool(file)
	if err != nil {
		return writeServerError(c, err)
	}
	defer func() { _ = s.store.RemoveSpool(id) }()

	data, err := os.ReadFile(spool)
	if err != nil {
		return writeServerError(c, err)
	}

	res, err := salvage.Recover(data, salvage.Options{Tunables: s.tunables, Logger: s.log})
	if err != nil {
		if errors.Is(err, salvage.ErrNoGeometry) {
			return writeError(c, http.StatusUnprocessableEntity, "recovery_error", err.Error(), "file", "")
		}
		return writeServerError(c, err)
	}

	sum := sha256.Sum256(data)
	archive := assemble.BuildArchive(res, tr, assemble.Provenance{
		Tool:         "salvor " + version.String(),
		SourceFile:   header.Filename,
		SourceSHA256: hex.EncodeToString(sum[:]),
		SourceBytes:  size,
	})
	if _, err := s.store.SaveArchive(id, archive); err != nil {
		return writeServerError(c, err)
	}
	entry, err := s.store.Get(id)
	if err != nil {
		return writeServerError(c, err)
	}

	s.log.Info("recovery stored",
		"id", id,
		"source", header.Filename,
		"bytes", size,
		"meshes", len(archive.Meshes),
		"vertices", res.TotalVertices(),
	)
	return writeJSON(c, http.StatusOK, recoveryDetail(entry, archive))
}

func (s *Server) handleListRecoveries(c *echo.Context) error {
	entries, err := s.store.List()
	if err != nil {
		return writeServerError(c, err)
	}
	list := RecoveryList{
		Object: "list",
		Data:   make([]RecoveryResource, 0, len(entries)),
	}
	for _, entry := range entries {
		manifest, err := s.store.Manifest(entry.ID)
		if err != nil {
			// Keep the listing robust: a mid-write or damaged archive
			// still shows up by id.
			s.log.Warn("skipping manifest", "id", entry.ID, "error", err)
			manifest = nil
		}
		list.Data = append(list.Data, recoveryResource(entry, manifest))
	}
	return writeJSON(c, http.StatusOK, list)
}

func (s *Server) handleGetRecovery(c *echo.Context) error {
	id := c.Param("id")
	entry, err := s.store.Get(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return writeNotFound(c, "recovery not found")
		}
		return writeServerError(c, err)
	}
	archive, err := s.store.OpenArchive(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return writeNotFound(c, "recovery not found")
		}
		return writeServerError(c, err)
	}
	return writeJSON(c, http.StatusOK, recoveryDetail(entry, archive))
}

func (s *Server) handleExportRecovery(c *echo.Context) error {
	id := c.Param("id")
	format := strings.ToLower(c.QueryParam("format"))
	if format == "" {
		format = "stl"
	}
	if format != "stl" && format != "obj" {
		return writeBadRequest(c, fmt.Sprintf("unsupported export format %q", format))
	}

	archive, err := s.store.OpenArchive(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return writeNotFound(c, "recovery not found")
		}
		return writeServerError(c, err)
	}

	// The stored archive already carries any viewer transforms, so the
	// export merge runs with the identity transform.
	cands := make([]salvage.Candidate, len(archive.Meshes))
	for i := range archive.Meshes {
		m := &archive.Meshes[i]
		cands[i] = salvage.Candidate{
			Name:      m.Name,
			Positions: m.Positions,
			Indices:   m.Indices,
			Source:    "smf",
		}
	}
	positions, indices := assemble.Build(cands, assemble.Transform{}).Merge()

	res := c.Response()
	res.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+"."+format))
	if format == "stl" {
		res.Header().Set(echo.HeaderContentType, "model/stl")
		res.WriteHeader(http.StatusOK)
		return stl.Write(res, positions, indices)
	}
	res.Header().Set(echo.HeaderContentType, "model/obj")
	res.WriteHeader(http.StatusOK)
	return objfile.Write(res, id, positions, indices)
}

func (s *Server) handleDeleteRecovery(c *echo.Context) error {
	id := c.Param("id")
	if err := s.store.Remove(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return writeNotFound(c, "recovery not found")
		}
		return writeServerError(c, err)
	}
	s.log.Info("recovery deleted", "id", id)
	return writeJSON(c, http.StatusOK, DeleteRecoveryResp{
		ID:      id,
		Object:  "recovery",
		Deleted: true,
	})
}

func (s *Server) handleHealthz(c *echo.Context) error {
	return writeJSON(c, http.StatusOK, HealthResp{
		Status:  "ok",
		Version: version.String(),
	})
}
