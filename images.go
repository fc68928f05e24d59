package kransite

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	_ "image/gif"
	_ "image/png"

	"github.com/labstack/echo/v4"
	"golang.org/x/image/draw"
)

const (
	maxImageWidth = 1600
	jpegQuality   = 82
	maxUploadSize = 20 << 20 // 20MB; catalog photos and short clips
)

// processImage decodes an image, scales it down to maxImageWidth when
// wider, and re-encodes it as JPEG. Returns the encoded bytes.
func processImage(src io.Reader) ([]byte, error) {
	img, _, err := image.Decode(src)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > maxImageWidth {
		newH := h * maxImageWidth / w
		dst := image.NewRGBA(image.Rect(0, 0, maxImageWidth, newH))
		draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		img = dst
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func (a *App) handleAdminListImages(c echo.Context) error {
	images, err := a.Store.ListImages()
	if err != nil {
		c.Logger().Errorf("list images: %v", err)
		return fail(c, http.StatusInternalServerError, "failed to load images")
	}
	return c.JSON(http.StatusOK, emptyAsList(images))
}

// handleAdminUploadImage accepts one file, stores the processed image
// under the images bucket and records a metadata row for it.
func (a *App) handleAdminUploadImage(c echo.Context) error {
	file, err := c.FormFile("image")
	if err != nil {
		return fail(c, http.StatusBadRequest, "no image file provided")
	}
	if file.Size > maxUploadSize {
		return fail(c, http.StatusBadRequest, "file too large")
	}

	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	data, err := processImage(src)
	if err != nil {
		c.Logger().Errorf("process image %s: %v", file.Filename, err)
		return fail(c, http.StatusBadRequest, "failed to upload image")
	}

	key := imageObjectKey("library", file.Filename)
	url, err := a.Storage.Save(BucketImages, key, data)
	if err != nil {
		c.Logger().Errorf("store image %s: %v", key, err)
		return fail(c, http.StatusInternalServerError, "failed to upload image")
	}

	img := ImageFile{
		URL:         url,
		Description: c.FormValue("description"),
		Filename:    filepath.Base(file.Filename),
	}
	if err := a.Store.CreateImage(&img); err != nil {
		// The row write failed after the object landed; clean the
		// orphaned upload up so storage and metadata stay in step.
		a.Storage.RemoveURL(url)
		c.Logger().Errorf("save image row: %v", err)
		return fail(c, http.StatusInternalServerError, "failed to upload image")
	}
	a.Cache.Invalidate()
	return c.JSON(http.StatusCreated, img)
}

func (a *App) handleAdminDeleteImage(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return fail(c, http.StatusBadRequest, "invalid id")
	}
	if !confirmedDelete(c) {
		return fail(c, http.StatusBadRequest, "confirmation required")
	}
	prev, _ := a.Store.GetImage(id)
	if err := a.Store.DeleteImage(id); err != nil {
		c.Logger().Errorf("delete image %d: %v", id, err)
		return fail(c, http.StatusInternalServerError, "failed to delete image")
	}
	a.Storage.RemoveURL(prev.URL)
	a.Cache.Invalidate()
	return c.JSON(http.StatusOK, deletedResponse{Deleted: id})
}

type uploadResponse struct {
	URL string `json:"url"`
}

// handleAdminStagedUpload stores a file for a form that will save its
// row later: the entity form puts the returned URL in its image field
// and submits when the admin is done. The optional old parameter names
// the URL being replaced; its object is removed best-effort.
func (a *App) handleAdminStagedUpload(c echo.Context) error {
	bucket := c.Param("bucket")
	if _, ok := storageBuckets[bucket]; !ok {
		return fail(c, http.StatusBadRequest, "unknown bucket")
	}
	file, err := c.FormFile("file")
	if err != nil {
		return fail(c, http.StatusBadRequest, "no file provided")
	}
	if file.Size > maxUploadSize {
		return fail(c, http.StatusBadRequest, "file too large")
	}

	src, err := file.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	prefix := c.FormValue("prefix")
	if prefix == "" {
		prefix = "uploads"
	}

	var (
		data []byte
		key  string
	)
	if bucket == BucketVideo {
		// Video files are stored as-is.
		data, err = io.ReadAll(src)
		if err != nil {
			return err
		}
		key = ObjectKey(prefix, file.Filename)
	} else {
		data, err = processImage(src)
		if err != nil {
			c.Logger().Errorf("process upload %s: %v", file.Filename, err)
			return fail(c, http.StatusBadRequest, "failed to upload image")
		}
		key = imageObjectKey(prefix, file.Filename)
	}

	url, err := a.Storage.Save(bucket, key, data)
	if err != nil {
		c.Logger().Errorf("store upload %s/%s: %v", bucket, key, err)
		return fail(c, http.StatusInternalServerError, "failed to upload image")
	}

	a.Storage.RemoveURL(c.FormValue("old"))
	return c.JSON(http.StatusCreated, uploadResponse{URL: url})
}

// imageObjectKey is ObjectKey with the extension forced to .jpg, since
// processImage always re-encodes as JPEG.
func imageObjectKey(prefix, originalName string) string {
	base := strings.TrimSuffix(originalName, filepath.Ext(originalName))
	return ObjectKey(prefix, base+".jpg")
}
