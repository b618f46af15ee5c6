package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"github.com/rcliao/memeboard/internal/auth"
	"github.com/rcliao/memeboard/internal/logging"
	"github.com/rcliao/memeboard/internal/media"
	"github.com/rcliao/memeboard/internal/model"
	"github.com/rcliao/memeboard/internal/store"
)

// MaxImageBytes bounds a single uploaded image.
const MaxImageBytes = 10 << 20

type handler struct {
	media  *media.Coordinator
	auth   *auth.Service
	logger logging.Logger
}

func (h *handler) requestLogger(c *gin.Context) logging.Logger {
	return logging.WithField(h.logger, requestIDKey, c.GetString(requestIDKey))
}

func (h *handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

func (h *handler) listMemes(c *gin.Context) {
	p := store.ListParams{Search: c.Query("search")}
	var err error
	if p.Limit, err = intQuery(c, "limit"); err != nil {
		badRequest(c, "limit", "limit must be a non-negative integer")
		return
	}
	if p.Offset, err = intQuery(c, "offset"); err != nil {
		badRequest(c, "offset", "offset must be a non-negative integer")
		return
	}
	if s := c.Query("sortBy"); s != "" {
		if !model.ValidSorts[model.SortBy(s)] {
			badRequest(c, "sortBy", "sortBy must be one of recent, popular, featured")
			return
		}
		p.SortBy = model.SortBy(s)
	}

	memes, err := h.media.List(c.Request.Context(), p)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, memes)
}

func intQuery(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func (h *handler) getMeme(c *gin.Context) {
	m, err := h.media.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *handler) createMeme(c *gin.Context) {
	file, err := formImage(c, "image", true)
	if err != nil {
		h.writeError(c, err)
		return
	}
	m, err := h.media.Create(c.Request.Context(), media.CreateRequest{
		Title: c.PostForm("title"),
		Tags:  model.ParseTags(c.PostForm("tags")),
		File:  file,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// tagList accepts either a JSON array or a comma-separated string.
type tagList []string

func (t *tagList) UnmarshalJSON(b []byte) error {
	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*t = list
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.New("tags must be an array or a comma-separated string")
	}
	*t = model.ParseTags(s)
	return nil
}

type editRequest struct {
	Title string  `json:"title"`
	Tags  tagList `json:"tags"`
}

func (h *handler) editMeme(c *gin.Context) {
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", "invalid JSON body")
		return
	}
	m, err := h.media.Edit(c.Request.Context(), c.Param("id"), req.Title, req.Tags)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "body", "username and password are required")
		return
	}
	token, exp, err := h.auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.requestLogger(c).Warn("failed login for %q", req.Username)
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token, "expiresAt": exp.UTC()})
}

func (h *handler) renameMeme(c *gin.Context) {
	file, err := formImage(c, "image", false)
	if err != nil {
		h.writeError(c, err)
		return
	}
	// An absent tags field keeps the current tags; an empty one clears them.
	var tags []string
	if raw, ok := c.GetPostForm("tags"); ok {
		tags = model.ParseTags(raw)
	}
	res, err := h.media.Rename(c.Request.Context(), principal(c), c.Param("id"), media.RenameRequest{
		Title: c.PostForm("title"),
		Tags:  tags,
		File:  file,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handler) lockMeme(c *gin.Context) {
	h.respondMeme(c)(h.media.Lock(c.Request.Context(), principal(c), c.Param("id")))
}

func (h *handler) unlockMeme(c *gin.Context) {
	h.respondMeme(c)(h.media.Unlock(c.Request.Context(), principal(c), c.Param("id")))
}

func (h *handler) featureMeme(c *gin.Context) {
	h.respondMeme(c)(h.media.Feature(c.Request.Context(), principal(c), c.Param("id")))
}

func (h *handler) unfeatureMeme(c *gin.Context) {
	h.respondMeme(c)(h.media.Unfeature(c.Request.Context(), principal(c), c.Param("id")))
}

func (h *handler) respondMeme(c *gin.Context) func(*model.Meme, error) {
	return func(m *model.Meme, err error) {
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, m)
	}
}

func (h *handler) deleteMeme(c *gin.Context) {
	res, err := h.media.Delete(c.Request.Context(), principal(c), c.Param("id"))
	if err != nil {
		if res != nil && errors.Is(err, media.ErrRecordWriteFailed) {
			status, body := mapDomainError(err)
			h.requestLogger(c).Error("delete %s: %v", c.Param("id"), err)
			c.AbortWithStatusJSON(status, gin.H{"error": body.Error, "result": res})
			return
		}
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handler) bulkUpload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		badRequest(c, "images", "multipart form with images is required")
		return
	}
	headers := append(form.File["images"], form.File["images[]"]...)
	if len(headers) == 0 {
		badRequest(c, "images", "at least one image is required")
		return
	}
	files := make([]media.File, 0, len(headers))
	var rejected []media.BulkFailure
	for _, fh := range headers {
		f, err := readImage(fh)
		if err != nil {
			rejected = append(rejected, media.BulkFailure{Name: fh.Filename, Reason: err.Error()})
			continue
		}
		files = append(files, *f)
	}

	res := &media.BulkResult{Created: []model.Meme{}, Failed: []media.BulkFailure{}}
	if len(files) > 0 {
		res, err = h.media.BulkUpload(c.Request.Context(), principal(c), files)
		if err != nil && res == nil {
			h.writeError(c, err)
			return
		}
	}
	res.Failed = append(res.Failed, rejected...)

	var status int
	switch {
	case err != nil:
		h.requestLogger(c).Error("bulk upload: %v", err)
		status, _ = mapDomainError(err)
		if len(res.Created) > 0 {
			status = http.StatusMultiStatus
		}
	case len(res.Created) == 0 && len(files) == 0:
		status = http.StatusBadRequest
	case len(res.Created) == 0:
		status = http.StatusBadGateway
	case len(res.Failed) > 0:
		status = http.StatusMultiStatus
	default:
		status = http.StatusCreated
	}
	c.JSON(status, res)
}

// formImage reads an optional or required image field from a multipart form.
func formImage(c *gin.Context, field string, required bool) (*media.File, error) {
	fh, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		if required {
			return nil, &model.ValidationError{Field: field, Message: "an image file is required"}
		}
		return nil, nil
	}
	if err != nil {
		return nil, &model.ValidationError{Field: field, Message: "could not read uploaded file"}
	}
	return readImage(fh)
}

func readImage(fh *multipart.FileHeader) (*media.File, error) {
	invalid := func(msg string) error {
		return &model.ValidationError{Field: "image", Message: msg}
	}
	if fh.Size > MaxImageBytes {
		return nil, invalid(fmt.Sprintf("%s exceeds %d MB", fh.Filename, MaxImageBytes>>20))
	}
	f, err := fh.Open()
	if err != nil {
		return nil, invalid("could not read uploaded file")
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, MaxImageBytes+1))
	if err != nil {
		return nil, invalid("could not read uploaded file")
	}
	if len(data) > MaxImageBytes {
		return nil, invalid(fmt.Sprintf("%s exceeds %d MB", fh.Filename, MaxImageBytes>>20))
	}
	mime := mimetype.Detect(data)
	if !strings.HasPrefix(mime.String(), "image/") {
		return nil, invalid(fmt.Sprintf("%s is not an image", fh.Filename))
	}
	return &media.File{Name: fh.Filename, MimeType: mime.String(), Data: data}, nil
}
