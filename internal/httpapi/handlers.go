package httpapi

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/frc-plan-sync/internal/remote"
	"github.com/DoyleJ11/frc-plan-sync/internal/types"
)

// GenerateCode returns a random six character session code.
func GenerateCode() (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyz0123456789"

	code := make([]byte, 6)
	for i := 0; i < 6; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, remote.ErrSessionNotFound), errors.Is(err, remote.ErrDocNotFound):
		return http.StatusNotFound
	case errors.Is(err, remote.ErrSessionExists):
		return http.StatusConflict
	case errors.Is(err, remote.ErrBadCollection), errors.Is(err, remote.ErrBadOp):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
	}
	writeJSON(w, status, types.ErrorBody{Code: types.CodeFor(err), Message: err.Error()})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, types.ErrorBody{Code: types.CodeBadRequest, Message: msg})
}

// CreateSession uses the requested code or generates a free one.
func CreateSession(s remote.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.CreateSessionRequest
		if r.ContentLength > 0 {
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				badRequest(w, "bad json")
				return
			}
		}

		if req.Code != "" {
			sess, err := s.CreateSession(r.Context(), req.Code)
			if err != nil {
				writeError(w, log, err)
				return
			}
			writeJSON(w, http.StatusCreated, sess)
			return
		}

		for {
			c, err := GenerateCode()
			if err != nil {
				http.Error(w, "failed to generate code", http.StatusInternalServerError)
				return
			}
			sess, err := s.CreateSession(r.Context(), c)
			if errors.Is(err, remote.ErrSessionExists) {
				log.Debug("collision on code, regenerating", zap.String("code", c))
				continue
			}
			if err != nil {
				writeError(w, log, err)
				return
			}
			writeJSON(w, http.StatusCreated, sess)
			return
		}
	}
}

func GetSession(s remote.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.GetSession(r.Context(), chi.URLParam(r, "code"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, sess)
	}
}

func IncrementVersion(s remote.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := s.IncrementVersion(r.Context(), chi.URLParam(r, "code"))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, types.VersionResponse{Version: v})
	}
}

func collection(r *http.Request) (remote.Collection, bool) {
	c := remote.Collection(chi.URLParam(r, "collection"))
	return c, c.Valid()
}

func ListDocs(s remote.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := collection(r)
		if !ok {
			writeError(w, log, remote.ErrBadCollection)
			return
		}
		docs, err := s.ListDocs(r.Context(), chi.URLParam(r, "code"), c)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, types.DocsResponse{Docs: docs})
	}
}

// WriteDoc serves PUT (set) and PATCH (update).
func WriteDoc(s remote.Store, log *zap.Logger, kind remote.OpKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := collection(r)
		if !ok {
			writeError(w, log, remote.ErrBadCollection)
			return
		}
		var fields map[string]any
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			badRequest(w, "bad json")
			return
		}
		code, id := chi.URLParam(r, "code"), chi.URLParam(r, "id")

		var err error
		if kind == remote.OpUpdate {
			err = s.UpdateDoc(r.Context(), code, c, id, fields)
		} else {
			err = s.SetDoc(r.Context(), code, c, id, fields)
		}
		if err != nil {
			writeError(w, log, err)
			return
		}
		recordWrite(kind, 1)
		w.WriteHeader(http.StatusNoContent)
	}
}

func DeleteDoc(s remote.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := collection(r)
		if !ok {
			writeError(w, log, remote.ErrBadCollection)
			return
		}
		if err := s.DeleteDoc(r.Context(), chi.URLParam(r, "code"), c, chi.URLParam(r, "id")); err != nil {
			writeError(w, log, err)
			return
		}
		recordWrite(remote.OpDelete, 1)
		w.WriteHeader(http.StatusNoContent)
	}
}

func BatchWrite(s remote.Store, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req types.BatchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			badRequest(w, "bad json")
			return
		}
		if err := s.BatchWrite(r.Context(), chi.URLParam(r, "code"), req.Ops); err != nil {
			writeError(w, log, err)
			return
		}
		for _, op := range req.Ops {
			recordWrite(op.Kind, 1)
		}
		batchSize.Observe(float64(len(req.Ops)))
		w.WriteHeader(http.StatusNoContent)
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
