package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"vlmcheck/internal/verifier"
	"vlmcheck/pkg/types"
)

// multipartMemory is the part of a multipart body kept in memory; the rest
// spills to temporary files.
const multipartMemory = 8 << 20

// errBadRequest marks decode failures carrying a client-facing message.
type errBadRequest struct {
	status int
	msg    string
}

func (e *errBadRequest) Error() string { return e.msg }

// verifyInput is a decoded verification request.
type verifyInput struct {
	image   io.Reader
	task    string
	cleanup func()
}

func verifyHandler(svc Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		in, err := decodeVerifyRequest(r)
		if err != nil {
			var br *errBadRequest
			if errors.As(err, &br) {
				countRejection(br.status)
				writeJSONError(w, br.status, br.msg)
				return
			}
			countRejection(http.StatusBadRequest)
			writeJSONError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		defer in.cleanup()

		// Join server base context with request context so shutdown cancels work too.
		ctx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		if verifyTimeout > 0 {
			var tcancel context.CancelFunc
			ctx, tcancel = context.WithTimeout(ctx, verifyTimeout)
			defer tcancel()
		}

		resp, err := svc.Verify(ctx, in.image, in.task)
		if err != nil {
			// Client went away: nobody is listening for the error.
			if r.Context().Err() != nil {
				zlog.Info().Str("request_id", middleware.GetReqID(r.Context())).Msg("client disconnected during verification")
				return
			}
			if serverBaseCtx.Err() != nil {
				writeJSONError(w, http.StatusServiceUnavailable, "server is shutting down")
				return
			}
			writeVerifyError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func decodeVerifyRequest(r *http.Request) (verifyInput, error) {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	switch {
	case strings.HasPrefix(ct, "multipart/form-data"):
		return decodeMultipart(r)
	case strings.HasPrefix(ct, "application/json"):
		return decodeJSON(r)
	default:
		return verifyInput{}, &errBadRequest{
			status: http.StatusUnsupportedMediaType,
			msg:    "Content-Type must be multipart/form-data or application/json",
		}
	}
}

func decodeMultipart(r *http.Request) (verifyInput, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		return verifyInput{}, bodyError(err, "invalid multipart body")
	}
	cleanup := func() { _ = r.MultipartForm.RemoveAll() }
	f, hdr, err := r.FormFile("image")
	if err != nil {
		cleanup()
		if errors.Is(err, http.ErrMissingFile) {
			return verifyInput{}, &errBadRequest{status: http.StatusBadRequest, msg: "image is required"}
		}
		return verifyInput{}, bodyError(err, "invalid image part")
	}
	verifyImageBytes.Observe(float64(hdr.Size))
	return verifyInput{
		image: f,
		task:  r.FormValue("task_description"),
		cleanup: func() {
			_ = f.Close()
			cleanup()
		},
	}, nil
}

func decodeJSON(r *http.Request) (verifyInput, error) {
	var req types.VerifyJSONRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return verifyInput{}, bodyError(err, "invalid JSON body")
	}
	img, err := verifier.DecodeImageBase64(req.ImageBase64)
	if err != nil {
		return verifyInput{}, &errBadRequest{status: http.StatusBadRequest, msg: "image_base64 is not valid base64"}
	}
	verifyImageBytes.Observe(float64(len(img)))
	return verifyInput{image: bytes.NewReader(img), task: req.TaskDescription, cleanup: func() {}}, nil
}

func bodyError(err error, msg string) error {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) {
		return &errBadRequest{status: http.StatusRequestEntityTooLarge, msg: "request body too large"}
	}
	return &errBadRequest{status: http.StatusBadRequest, msg: msg}
}
