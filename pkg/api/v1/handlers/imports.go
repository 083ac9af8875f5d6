package handlers

import (
	"io"
	"mime/multipart"

	fiber "github.com/gofiber/fiber/v2"

	"github.com/celestiaorg/geoimport/internal/db/models"
	"github.com/celestiaorg/geoimport/internal/services"
	"github.com/celestiaorg/geoimport/internal/types"
)

// ImportHandler handles HTTP requests for uploads and import items
type ImportHandler struct {
	*APIHandler
}

// NewImportHandler creates a new ImportHandler instance
func NewImportHandler(api *APIHandler) *ImportHandler {
	return &ImportHandler{
		APIHandler: api,
	}
}

// ListItems handles the request to list the user's import items
func (h *ImportHandler) ListItems(c *fiber.Ctx) error {
	owner, err := ownerID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(err.Error()))
	}

	page := c.QueryInt("page", 1)
	if page < 1 {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(ErrMsgNegativePagination))
	}

	status := models.ImportItemStatusUnknown
	if raw := c.Query("status"); raw != "" {
		status, err = models.ParseImportItemStatus(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(ErrMsgInvalidItemStatus))
		}
	}

	opts := getPaginationOptions(page)
	items, err := h.imports.ListItems(c.Context(), owner, status, opts)
	if err != nil {
		return respondError(c, err, ErrMsgItemNotFound, ErrMsgListItemsFailed)
	}

	return c.JSON(types.Success(types.ListResponse[models.ImportItem]{
		Rows: items,
		Pagination: types.PaginationResponse{
			Total:  len(items),
			Page:   page,
			Limit:  opts.Limit,
			Offset: opts.Offset,
		},
	}))
}

// GetItem returns an import item with its staged features and duplicate report
func (h *ImportHandler) GetItem(c *fiber.Ctx) error {
	owner, err := ownerID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(err.Error()))
	}
	id, err := positiveID(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(ErrMsgInvalidItemID))
	}

	item, err := h.imports.GetItem(c.Context(), owner, id)
	if err != nil {
		return respondError(c, err, ErrMsgItemNotFound, ErrMsgGetItemFailed)
	}
	return c.JSON(types.Success(item))
}

// Upload accepts a KML, KMZ or GPX file in the "file" form field and queues
// its processing. An optional replacement_target_id turns the upload into a
// geometry replacement for that feature.
func (h *ImportHandler) Upload(c *fiber.Ctx) error {
	owner, err := ownerID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(err.Error()))
	}

	header, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(ErrMsgFileRequired))
	}

	var target uint
	if raw := c.FormValue("replacement_target_id"); raw != "" {
		target, err = positiveID(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(ErrMsgInvalidTargetID))
		}
	}

	data, err := readFormFile(header)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(ErrMsgFileReadFailed))
	}

	resp, err := h.imports.StartUpload(c.Context(), services.UploadRequest{
		OwnerID:             owner,
		Filename:            header.Filename,
		Data:                data,
		ReplacementTargetID: target,
	})
	if err != nil {
		return respondError(c, err, ErrMsgItemNotFound, ErrMsgUploadFailed)
	}
	return c.Status(fiber.StatusAccepted).JSON(types.Success(resp))
}

// Commit queues the commit of ready import items into the feature library
func (h *ImportHandler) Commit(c *fiber.Ctx) error {
	owner, err := ownerID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(err.Error()))
	}

	var req types.CommitRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(ErrMsgInvalidReqBody))
	}

	resp, err := h.imports.StartCommit(owner, req)
	if err != nil {
		return respondError(c, err, ErrMsgItemNotFound, ErrMsgCommitFailed)
	}
	return c.Status(fiber.StatusAccepted).JSON(types.Success(resp))
}

// DeleteItem queues the deletion of an import item
func (h *ImportHandler) DeleteItem(c *fiber.Ctx) error {
	owner, err := ownerID(c)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(err.Error()))
	}
	id, err := positiveID(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(types.ErrInvalidInput(ErrMsgInvalidItemID))
	}

	resp, err := h.imports.StartDelete(c.Context(), owner, id)
	if err != nil {
		return respondError(c, err, ErrMsgItemNotFound, ErrMsgDeleteItemFailed)
	}
	return c.Status(fiber.StatusAccepted).JSON(types.Success(resp))
}

func readFormFile(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
