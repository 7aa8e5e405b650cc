// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"errors"
	"io"
	"net/http"

	"inkpress/internal/apperror"
	"inkpress/internal/middleware"
	"inkpress/internal/service"
)

// multipartOverhead allows for headers and boundaries around the file part.
const multipartOverhead = 1 << 20

// Images groups image upload handlers.
type Images struct {
	images *service.ImageService
}

// NewImages creates a new Images handler group.
func NewImages(images *service.ImageService) *Images {
	return &Images{images: images}
}

// Upload accepts a multipart form with a single "file" part.
func (h *Images) Upload(w http.ResponseWriter, r *http.Request) {
	if !h.images.Enabled() {
		writeError(w, r, service.ErrStorageUnavailable)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, service.MaxImageSize+multipartOverhead)
	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, r, service.ErrImageTooLarge)
			return
		}
		writeError(w, r, apperror.ValidationFailed("file", "expected a multipart form upload"))
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, apperror.ValidationFailed("file", "file is required"))
		return
	}
	defer file.Close()

	// One byte past the limit is enough to reject the file.
	data, err := io.ReadAll(io.LimitReader(file, service.MaxImageSize+1))
	if err != nil {
		writeError(w, r, err)
		return
	}

	m, err := h.images.Upload(r.Context(), middleware.UserFromCtx(r.Context()), header.Filename, data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusCreated, "image uploaded", "image", m)
}

// List returns the caller's uploads, newest first.
func (h *Images) List(w http.ResponseWriter, r *http.Request) {
	page, err := intQuery(r, "page")
	if err != nil {
		writeError(w, r, err)
		return
	}
	perPage, err := intQuery(r, "perPage")
	if err != nil {
		writeError(w, r, err)
		return
	}
	items, err := h.images.List(r.Context(), middleware.UserFromCtx(r.Context()), page, perPage)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{"images": items})
}

// Delete removes an image and its stored objects.
func (h *Images) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuidParam(r, "id", "image")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.images.Delete(r.Context(), middleware.UserFromCtx(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "image deleted", "", nil)
}
