// Package api serves the statement pipeline over HTTP.
package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement-ingest/internal/extractor"
	"github.com/insightdelivered/statement-ingest/internal/ingest"
	"github.com/insightdelivered/statement-ingest/internal/models"
	"github.com/insightdelivered/statement-ingest/internal/pipeline"
	"github.com/insightdelivered/statement-ingest/internal/storage"
	"github.com/insightdelivered/statement-ingest/internal/writer"
)

// ConvertResponse is the JSON response from the /api/convert endpoint.
type ConvertResponse struct {
	Success       bool                 `json:"success"`
	Error         string               `json:"error,omitempty"`
	ErrorKind     string               `json:"errorKind,omitempty"`
	ID            string               `json:"id,omitempty"`
	Source        string               `json:"source,omitempty"`
	Institution   string               `json:"institution,omitempty"`
	Currency      string               `json:"currency,omitempty"`
	StatementKind models.StatementKind `json:"statementKind,omitempty"`
	Statement     *models.ParseResult  `json:"statement,omitempty"`
	CSV           string               `json:"csv,omitempty"`
	TotalIn       decimal.Decimal      `json:"totalIn"`
	TotalOut      decimal.Decimal      `json:"totalOut"`
	Count         int                  `json:"count"`
	Version       string               `json:"version,omitempty"`
}

// BankInfo describes a registered institution. Credentials are never listed.
type BankInfo struct {
	Name           string                 `json:"name"`
	Currency       string                 `json:"currency,omitempty"`
	Kinds          []models.StatementKind `json:"kinds"`
	HasCredentials bool                   `json:"hasCredentials"`
}

// Handler holds the HTTP handlers for the API.
type Handler struct {
	Pipeline  *pipeline.Pipeline
	Store     storage.Storage // optional; enables the /api/jobs routes
	Sinks     []ingest.Sink   // receive every conversion
	Logger    *slog.Logger
	Version   string
	StaticDir string
}

// App builds the fiber application.
func (h *Handler) App(bodyLimit int) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "statement-ingest",
		BodyLimit:             bodyLimit,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler,
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{AllowMethods: "GET,POST,OPTIONS"}))
	h.RegisterRoutes(app)
	return app
}

// RegisterRoutes sets up the HTTP routes.
func (h *Handler) RegisterRoutes(r fiber.Router) {
	r.Get("/api/health", h.HandleHealth)
	r.Get("/api/banks", h.HandleBanks)
	r.Post("/api/convert", h.HandleConvert)
	if h.Store != nil {
		r.Get("/api/jobs", h.HandleJobs)
		r.Get("/api/jobs/:id", h.HandleJobFiles)
		r.Get("/api/jobs/:id/:name", h.HandleJobFile)
	}
	r.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	if h.StaticDir != "" {
		r.Static("/", h.StaticDir)
	}
}

func (h *Handler) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

// HandleHealth reports liveness.
func (h *Handler) HandleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"engine":  "fiber",
		"version": h.Version,
	})
}

// HandleBanks lists the registered institutions.
func (h *Handler) HandleBanks(c *fiber.Ctx) error {
	profiles := h.Pipeline.Registry().Profiles()
	banks := make([]BankInfo, 0, len(profiles))
	for _, p := range profiles {
		info := BankInfo{Name: p.Name, Currency: p.Currency, HasCredentials: len(p.Credentials) > 0}
		for _, f := range p.Formats {
			info.Kinds = append(info.Kinds, f.Kind)
		}
		banks = append(banks, info)
	}
	return c.JSON(banks)
}

// HandleConvert runs an uploaded statement through the pipeline.
//
// Form fields: file (required), password (repeatable), bank, header and
// format. Without format the response is JSON carrying the CSV text; with
// format=csv|xlsx|json the converted file is returned as an attachment.
func (h *Handler) HandleConvert(c *fiber.Ctx) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, "No file uploaded. Use form field 'file'.", "")
	}
	name := filepath.Base(fh.Filename)
	if !strings.EqualFold(filepath.Ext(name), ".pdf") {
		return writeError(c, fiber.StatusBadRequest, "Only PDF files are supported.", "")
	}

	var format writer.Format
	if v := c.FormValue("format"); v != "" {
		if format, err = writer.ParseFormat(v); err != nil {
			return writeError(c, fiber.StatusBadRequest, err.Error(), "")
		}
	}
	institution := strings.TrimSpace(c.FormValue("bank"))
	if institution != "" {
		if _, ok := h.Pipeline.Registry().Lookup(institution); !ok {
			return writeError(c, fiber.StatusBadRequest, "Unknown bank: "+institution, "")
		}
	}
	includeHeader := c.FormValue("header") != "false"

	// No password field leaves creds nil so the registry's credentials apply.
	var creds []models.Credential
	if form, err := c.MultipartForm(); err == nil && len(form.Value["password"]) > 0 {
		creds = models.NewCredentials(form.Value["password"]...)
	}

	f, err := fh.Open()
	if err != nil {
		return writeError(c, fiber.StatusInternalServerError, "Failed to read uploaded file.", "")
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		return writeError(c, fiber.StatusInternalServerError, "Failed to read uploaded file.", "")
	}

	ctx := c.UserContext()
	job := pipeline.Job{
		Source:      extractor.FromBytes(name, data),
		Credentials: creds,
		Institution: institution,
	}
	res := h.Pipeline.Process(ctx, job)
	job.ID = res.ID
	h.publish(ctx, job, res)

	if res.Err != nil {
		return writeError(c, statusFor(res.Err), res.Err.Error(), models.ErrorKind(res.Err))
	}

	if format != "" {
		var buf bytes.Buffer
		if err := writer.New(format, includeHeader).Write(&buf, res.Output()); err != nil {
			return writeError(c, fiber.StatusInternalServerError, "Output generation failed.", "")
		}
		c.Set(fiber.HeaderContentType, format.ContentType())
		c.Attachment(strings.TrimSuffix(name, filepath.Ext(name)) + format.Extension())
		return c.Send(buf.Bytes())
	}

	var csvBuf bytes.Buffer
	if err := (&writer.CSVWriter{IncludeHeader: includeHeader}).Write(&csvBuf, res.Output()); err != nil {
		return writeError(c, fiber.StatusInternalServerError, "CSV generation failed.", "")
	}

	resp := ConvertResponse{
		Success:       true,
		ID:            res.ID.String(),
		Source:        res.Source,
		Institution:   res.Institution,
		Currency:      res.Currency,
		StatementKind: res.Kind,
		Statement:     res.Statement,
		CSV:           csvBuf.String(),
		Count:         len(res.Statement.Transactions),
		Version:       h.Version,
	}
	if resp.Statement.Transactions == nil {
		resp.Statement.Transactions = []models.Transaction{}
	}
	for _, txn := range res.Statement.Transactions {
		if txn.Amount.IsPositive() {
			resp.TotalIn = resp.TotalIn.Add(txn.Amount)
		} else {
			resp.TotalOut = resp.TotalOut.Sub(txn.Amount)
		}
	}
	return c.JSON(resp)
}

func (h *Handler) publish(ctx context.Context, job pipeline.Job, res pipeline.Result) {
	for _, sink := range h.Sinks {
		if err := sink.Publish(ctx, ingest.Delivery{Job: job, Result: res}); err != nil {
			h.logger().Warn("publish conversion failed", "id", res.ID, "source", res.Source, "error", err)
		}
	}
}

// HandleJobs lists archived job ids.
func (h *Handler) HandleJobs(c *fiber.Ctx) error {
	ids, err := h.Store.Jobs(c.UserContext())
	if err != nil {
		return err
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return c.JSON(out)
}

// HandleJobFiles lists the files archived for one job.
func (h *Handler) HandleJobFiles(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, "Invalid job id.", "")
	}
	files, err := h.Store.List(c.UserContext(), id)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fiber.ErrNotFound
	}
	return c.JSON(files)
}

// HandleJobFile downloads one archived file.
func (h *Handler) HandleJobFile(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return writeError(c, fiber.StatusBadRequest, "Invalid job id.", "")
	}
	rc, info, err := h.Store.Open(c.UserContext(), id, c.Params("name"))
	if err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, info.ContentType)
	c.Attachment(info.Name)
	return c.SendStream(rc, int(info.Size))
}

// statusFor maps pipeline errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case models.IsAuthError(err):
		return fiber.StatusUnauthorized
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	case models.ErrorKind(err) == "internal":
		return fiber.StatusInternalServerError
	default:
		return fiber.StatusUnprocessableEntity
	}
}

func errorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	msg := "Internal server error."
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code, msg = fe.Code, fe.Message
	case errors.Is(err, storage.ErrNotFound):
		code, msg = fiber.StatusNotFound, "Not found."
	}
	return writeError(c, code, msg, "")
}

func writeError(c *fiber.Ctx, status int, msg, kind string) error {
	return c.Status(status).JSON(ConvertResponse{
		Success:   false,
		Error:     msg,
		ErrorKind: kind,
	})
}
