package http

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"bookstack/internal/entity"
	"bookstack/internal/usecase"
	"bookstack/pkg/logger"

	"github.com/gin-gonic/gin"
)

type BookHandler struct {
	bookUseCase usecase.BookUseCase
	logger      *logger.Logger
}

func NewBookHandler(bookUseCase usecase.BookUseCase, logger *logger.Logger) *BookHandler {
	return &BookHandler{
		bookUseCase: bookUseCase,
		logger:      logger,
	}
}

func formatBookResponse(book *entity.Book) map[string]interface{} {
	tags := make([]map[string]string, 0, len(book.Tags))
	for _, tag := range book.Tags {
		tags = append(tags, map[string]string{
			"type": string(tag.Type),
			"name": tag.Name,
		})
	}

	response := map[string]interface{}{
		"id":          book.ID,
		"title":       book.Title,
		"description": book.Description,
		"state":       book.State,
		"tags":        tags,
		"has_cover":   book.CoverFile != "",
		"has_file":    book.BookFile != "",
		"created_at":  book.CreatedAt,
		"updated_at":  book.UpdatedAt,
	}
	if book.PublishedDate != nil {
		response["published_date"] = book.PublishedDate
	}
	if book.UserID != nil {
		response["owner_id"] = *book.UserID
	}
	return response
}

func formatBookList(books []*entity.Book) []map[string]interface{} {
	response := make([]map[string]interface{}, 0, len(books))
	for _, book := range books {
		response = append(response, formatBookResponse(book))
	}
	return response
}

type TagPayload struct {
	Type entity.TagType `json:"type" binding:"required"`
	Name string         `json:"name" binding:"required"`
}

func toTags(payload []TagPayload) []entity.Tag {
	tags := make([]entity.Tag, 0, len(payload))
	for _, tag := range payload {
		tags = append(tags, entity.Tag{Type: tag.Type, Name: tag.Name})
	}
	return tags
}

type CreateBookRequest struct {
	Title         string       `json:"title" binding:"required"`
	Description   string       `json:"description"`
	PublishedDate *time.Time   `json:"published_date"`
	Tags          []TagPayload `json:"tags"`
}

// CreateBook godoc
// @Summary      Create a book
// @Description  Create a new book owned by the caller. New books start in the DRAFT state.
// @Tags         books
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body CreateBookRequest true "Book fields"
// @Success      201  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /books [post]
func (h *BookHandler) CreateBook(c *gin.Context) {
	var req CreateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	book, err := h.bookUseCase.Create(actorFrom(c), usecase.CreateBookInput{
		Title:         req.Title,
		Description:   req.Description,
		PublishedDate: req.PublishedDate,
		Tags:          toTags(req.Tags),
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, formatBookResponse(book))
}

// ListBooks godoc
// @Summary      Search visible books
// @Description  List VISIBLE books matching the search query. Segments are separated by semicolons; a segment is either free text matched against titles, or key:value where the key is a tag type (AUTHOR, GENRE) or DESC for description search.
// @Tags         books
// @Produce      json
// @Param        search query string false "Search query, e.g. dune;GENRE:sci-fi;DESC:spice"
// @Success      200  {array}   map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Router       /books [get]
func (h *BookHandler) ListBooks(c *gin.Context) {
	books, err := h.bookUseCase.ListVisible(c.Query("search"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, formatBookList(books))
}

// ListDrafts godoc
// @Summary      List own unpublished books
// @Description  Return the caller's books still in DRAFT or UNAPPROVED
// @Tags         books
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   map[string]interface{}
// @Failure      401  {object}  map[string]string
// @Router       /books/drafts [get]
func (h *BookHandler) ListDrafts(c *gin.Context) {
	books, err := h.bookUseCase.ListDrafts(actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, formatBookList(books))
}

// ListPending godoc
// @Summary      List books awaiting review
// @Description  Return every UNAPPROVED book. Requires the APPROVE or EDIT permission.
// @Tags         books
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   map[string]interface{}
// @Failure      403  {object}  map[string]string
// @Router       /books/pending [get]
func (h *BookHandler) ListPending(c *gin.Context) {
	books, err := h.bookUseCase.ListPending(actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, formatBookList(books))
}

// ListArchived godoc
// @Summary      List archived books
// @Description  Return every ARCHIVED book. Requires the ARCHIVE permission.
// @Tags         books
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   map[string]interface{}
// @Failure      403  {object}  map[string]string
// @Router       /books/archived [get]
func (h *BookHandler) ListArchived(c *gin.Context) {
	books, err := h.bookUseCase.ListArchived(actorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, formatBookList(books))
}

// GetBook godoc
// @Summary      Get book by ID
// @Description  Return a single book. Access depends on the book's state and the caller's permissions.
// @Tags         books
// @Produce      json
// @Param        id path string true "Book ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /books/{id} [get]
func (h *BookHandler) GetBook(c *gin.Context) {
	book, err := h.bookUseCase.Get(actorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, formatBookResponse(book))
}

type UpdateBookRequest struct {
	Title         *string       `json:"title"`
	Description   *string       `json:"description"`
	PublishedDate *time.Time    `json:"published_date"`
	Tags          *[]TagPayload `json:"tags"`
}

// UpdateBook godoc
// @Summary      Update a book
// @Description  Change title, description, published date or the tag set. Omitted fields stay unchanged; a tags array replaces the whole set.
// @Tags         books
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Book ID"
// @Param        request body UpdateBookRequest true "Fields to change"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /books/{id} [put]
func (h *BookHandler) UpdateBook(c *gin.Context) {
	var req UpdateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	input := usecase.UpdateBookInput{
		Title:         req.Title,
		Description:   req.Description,
		PublishedDate: req.PublishedDate,
	}
	if req.Tags != nil {
		input.Tags = toTags(*req.Tags)
		if input.Tags == nil {
			input.Tags = []entity.Tag{}
		}
	}

	book, err := h.bookUseCase.Update(actorFrom(c), c.Param("id"), input)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, formatBookResponse(book))
}

// SubmitBook godoc
// @Summary      Submit a draft for review
// @Description  Move an owned DRAFT book to UNAPPROVED
// @Tags         books
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Book ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      403  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /books/{id}/submit [post]
func (h *BookHandler) SubmitBook(c *gin.Context) {
	h.transition(c, h.bookUseCase.Submit)
}

// ApproveBook godoc
// @Summary      Approve a submitted book
// @Description  Move an UNAPPROVED book to VISIBLE. Requires the APPROVE permission.
// @Tags         books
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Book ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      403  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /books/{id}/approve [post]
func (h *BookHandler) ApproveBook(c *gin.Context) {
	h.transition(c, h.bookUseCase.Approve)
}

// RejectBook godoc
// @Summary      Reject a submitted book
// @Description  Move an UNAPPROVED book back to DRAFT. Requires the APPROVE permission.
// @Tags         books
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Book ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      403  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /books/{id}/reject [post]
func (h *BookHandler) RejectBook(c *gin.Context) {
	h.transition(c, h.bookUseCase.Reject)
}

// ArchiveBook godoc
// @Summary      Archive a book
// @Description  Move a VISIBLE book to ARCHIVED. Requires the ARCHIVE permission.
// @Tags         books
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Book ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      403  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /books/{id}/archive [post]
func (h *BookHandler) ArchiveBook(c *gin.Context) {
	h.transition(c, h.bookUseCase.Archive)
}

// UnarchiveBook godoc
// @Summary      Restore an archived book
// @Description  Move an ARCHIVED book back to VISIBLE. Requires the ARCHIVE permission.
// @Tags         books
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Book ID"
// @Success      200  {object}  map[string]interface{}
// @Failure      403  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /books/{id}/unarchive [post]
func (h *BookHandler) UnarchiveBook(c *gin.Context) {
	h.transition(c, h.bookUseCase.Unarchive)
}

func (h *BookHandler) transition(c *gin.Context, apply func(actor *entity.User, id string) (*entity.Book, error)) {
	book, err := apply(actorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, formatBookResponse(book))
}

// DeleteBook godoc
// @Summary      Delete a book
// @Description  Permanently delete an ARCHIVED book and its stored files. Requires the DELETE permission.
// @Tags         books
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Book ID"
// @Success      200  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /books/{id} [delete]
func (h *BookHandler) DeleteBook(c *gin.Context) {
	if err := h.bookUseCase.Delete(actorFrom(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "book deleted"})
}

// UploadCover godoc
// @Summary      Upload a cover image
// @Description  Store the book's cover. A previous cover with a different extension is removed.
// @Tags         books
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Book ID"
// @Param        file formData file true "Cover image"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /books/{id}/cover [post]
func (h *BookHandler) UploadCover(c *gin.Context) {
	h.upload(c, h.bookUseCase.SetCover)
}

// UploadFile godoc
// @Summary      Upload the book file
// @Description  Store the book's content file. A previous file with a different extension is removed.
// @Tags         books
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "Book ID"
// @Param        file formData file true "Book content file"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /books/{id}/file [post]
func (h *BookHandler) UploadFile(c *gin.Context) {
	h.upload(c, h.bookUseCase.SetFile)
}

func (h *BookHandler) upload(c *gin.Context, apply func(actor *entity.User, id, filename string, file io.Reader, contentType string) (*entity.Book, error)) {
	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File is required"})
		return
	}

	file, err := header.Open()
	if err != nil {
		h.logger.Error("Failed to open uploaded file: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read uploaded file"})
		return
	}
	defer file.Close()

	book, err := apply(actorFrom(c), c.Param("id"), header.Filename, file, header.Header.Get("Content-Type"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, formatBookResponse(book))
}

// GetCover godoc
// @Summary      Download the cover image
// @Tags         books
// @Produce      octet-stream
// @Param        id path string true "Book ID"
// @Success      200  {file}    file
// @Failure      404  {object}  map[string]string
// @Router       /books/{id}/cover [get]
func (h *BookHandler) GetCover(c *gin.Context) {
	stream, contentType, err := h.bookUseCase.GetCover(actorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	defer stream.Close()

	c.DataFromReader(http.StatusOK, -1, contentType, stream, nil)
}

// GetFile godoc
// @Summary      Download the book file
// @Description  Stream the content file. The download name is derived from the book title.
// @Tags         books
// @Produce      octet-stream
// @Param        id path string true "Book ID"
// @Success      200  {file}    file
// @Failure      404  {object}  map[string]string
// @Router       /books/{id}/file [get]
func (h *BookHandler) GetFile(c *gin.Context) {
	stream, contentType, downloadName, err := h.bookUseCase.GetFile(actorFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	defer stream.Close()

	c.DataFromReader(http.StatusOK, -1, contentType, stream, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", downloadName),
	})
}
