package api

import (
	"fmt"
	"io"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/shelf/pkg/errs"
)

// handleUpload handles POST /v1/documents with a multipart "file" field.
func (s *Server) handleUpload(c *fiber.Ctx) error {
	name, data, err := s.readUpload(c)
	if err != nil {
		return s.writeError(c, err)
	}

	res, err := s.documents.Upload(c.UserContext(), name, data)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(res)
}

// handleReupload handles PUT /v1/documents/:id with a multipart "file" field.
func (s *Server) handleReupload(c *fiber.Ctx) error {
	id, err := documentID(c)
	if err != nil {
		return s.writeError(c, err)
	}

	name, data, err := s.readUpload(c)
	if err != nil {
		return s.writeError(c, err)
	}

	res, err := s.documents.Reupload(c.UserContext(), id, name, data)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(res)
}

// handleListDocuments handles GET /v1/documents.
// Query parameters:
//   - page (optional, default 1)
//   - per_page (optional, default 10, max 100)
func (s *Server) handleListDocuments(c *fiber.Ctx) error {
	page, err := intQuery(c, "page", 1)
	if err != nil || page < 1 {
		return badRequest(c, "page must be a positive integer")
	}
	perPage, err := intQuery(c, "per_page", 10)
	if err != nil || perPage < 1 || perPage > 100 {
		return badRequest(c, "per_page must be an integer between 1 and 100")
	}

	res, err := s.documents.List(c.UserContext(), page, perPage)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(res)
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	stats, err := s.documents.Stats(c.UserContext())
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(stats)
}

func (s *Server) handleGetDocument(c *fiber.Ctx) error {
	id, err := documentID(c)
	if err != nil {
		return s.writeError(c, err)
	}

	doc, err := s.documents.Get(c.UserContext(), id)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(doc)
}

func (s *Server) handleDeleteDocument(c *fiber.Ctx) error {
	id, err := documentID(c)
	if err != nil {
		return s.writeError(c, err)
	}

	if err := s.documents.Delete(c.UserContext(), id); err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(fiber.Map{"document_id": id, "deleted": true})
}

func (s *Server) handleGetChunks(c *fiber.Ctx) error {
	id, err := documentID(c)
	if err != nil {
		return s.writeError(c, err)
	}

	chunks, err := s.documents.Chunks(c.UserContext(), id)
	if err != nil {
		return s.writeError(c, err)
	}
	return c.JSON(fiber.Map{"document_id": id, "chunks": chunks, "count": len(chunks)})
}

// handleDownload streams the stored file back under its original name.
func (s *Server) handleDownload(c *fiber.Ctx) error {
	id, err := documentID(c)
	if err != nil {
		return s.writeError(c, err)
	}

	rc, doc, err := s.documents.Open(c.UserContext(), id)
	if err != nil {
		return s.writeError(c, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return s.writeError(c, errs.Wrap(errs.KindPersistence, "reading document file", err))
	}

	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", doc.Filename))
	c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
	return c.Send(data)
}

// readUpload returns the multipart "file" field. Size limits are enforced by
// the document service; reads stop one byte past the limit.
func (s *Server) readUpload(c *fiber.Ctx) (string, []byte, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return "", nil, errs.New(errs.KindUpload, "no file uploaded")
	}

	f, err := fh.Open()
	if err != nil {
		return "", nil, errs.Wrap(errs.KindUpload, "reading uploaded file", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.documents.MaxBytes()+1))
	if err != nil {
		return "", nil, errs.Wrap(errs.KindUpload, "reading uploaded file", err)
	}
	return fh.Filename, data, nil
}

func documentID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errs.New(errs.KindInvalidRequest, "document id must be a positive integer")
	}
	return id, nil
}

func intQuery(c *fiber.Ctx, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
