// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"net/http"

	"inkpress/internal/middleware"
)

type codeRequest struct {
	Code string `json:"code"`
}

// SetupTOTP generates a new secret and returns it with a QR code. 2FA
// stays off until the user confirms a code with EnableTOTP.
func (h *Users) SetupTOTP(w http.ResponseWriter, r *http.Request) {
	setup, err := h.users.SetupTOTP(r.Context(), middleware.UserFromCtx(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{
		"message": "scan the QR code, then confirm a code to enable two-factor authentication",
		"secret":  setup.Secret,
		"qrCode":  setup.QRCode,
	})
}

// EnableTOTP turns on 2FA after checking a code from the authenticator.
func (h *Users) EnableTOTP(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.users.EnableTOTP(r.Context(), middleware.UserFromCtx(r.Context()), req.Code); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "two-factor authentication enabled", "", nil)
}

// DisableTOTP turns off 2FA. A current code is required.
func (h *Users) DisableTOTP(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.users.DisableTOTP(r.Context(), middleware.UserFromCtx(r.Context()), req.Code); err != nil {
		writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "two-factor authentication disabled", "", nil)
}
