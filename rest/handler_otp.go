package rest

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/pispworks/thirdparty-adapter/flows/otpvalidate"
	"github.com/pispworks/thirdparty-adapter/tperror"
)

// HandlePostOTPValidate submits an auth token for validation and blocks
// until the DFSP's verdict arrives or the wait window closes.
func (s *Server) HandlePostOTPValidate(w http.ResponseWriter, r *http.Request) {
	var request otpvalidate.Request
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondWithError(w, http.StatusBadRequest, tperror.OTPValidationError)
		return
	}
	seconds := s.deps.Conf.Timeouts.OTPValidateSeconds
	if seconds <= 0 {
		seconds = 30
	}
	response, err := otpvalidate.Validate(r.Context(), otpvalidate.ModelConfig{
		KVS:        s.deps.KVS,
		PubSub:     s.deps.PubSub,
		Thirdparty: s.deps.Thirdparty,
		Timeout:    time.Duration(seconds) * time.Second,
	}, request)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, tperror.Reformat(err, tperror.OTPValidationError))
		return
	}
	respondWithJSON(w, http.StatusOK, response)
}
