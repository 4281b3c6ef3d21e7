package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pispworks/thirdparty-adapter/deferredjob"
	"github.com/pispworks/thirdparty-adapter/flows/dfsplinking"
	"github.com/pispworks/thirdparty-adapter/flows/otpvalidate"
	"github.com/pispworks/thirdparty-adapter/flows/pisplinking"
	"github.com/pispworks/thirdparty-adapter/logger"
	"github.com/pispworks/thirdparty-adapter/model"
	"github.com/pispworks/thirdparty-adapter/tperror"
	"go.uber.org/zap"
)

const headerSource string = "FSPIOP-Source"

// HandlePostConsentRequests accepts a PISP's linking request and runs
// the DFSP linking workflow in the background. The caller gets a 202;
// everything else travels over callbacks.
func (s *Server) HandlePostConsentRequests(w http.ResponseWriter, r *http.Request) {
	var request model.ConsentRequestsPostRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondWithError(w, http.StatusBadRequest, tperror.ConsentRequestValidationError)
		return
	}
	m, err := dfsplinking.Create(&dfsplinking.Data{
		ConsentRequestId: request.ConsentRequestId,
		ToParticipantId:  r.Header.Get(headerSource),
		Request:          &request,
	}, dfsplinking.ModelConfig{
		Key:           request.ConsentRequestId,
		KVS:           s.deps.KVS,
		PubSub:        s.deps.PubSub,
		Backend:       s.deps.Backend,
		Thirdparty:    s.deps.Thirdparty,
		AuthService:   s.deps.AuthService,
		Timeouts:      s.deps.Conf.Timeouts,
		TestOverrides: s.deps.Conf.TestOverrides,
	})
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, tperror.Reformat(err, tperror.ServerError))
		return
	}
	go func() {
		if err := m.Run(context.Background()); err != nil {
			logger.Error("dfsp linking workflow failed", zap.String("consentRequestId", request.ConsentRequestId), zap.Error(err))
		}
	}()
	respondAccepted(w)
}

// HandlePutConsentRequestsID delivers the DFSP's channel selection into
// whichever flow is waiting on it. The raw payload is republished so a
// suspended step decodes exactly what arrived on the wire.
func (s *Server) HandlePutConsentRequestsID(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["ID"]
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, tperror.GenericLinkingError)
		return
	}
	if err := pisplinking.TriggerWorkflow(r.Context(), pisplinking.PhaseWaitOnChannelResponse, id, s.deps.PubSub, json.RawMessage(payload)); err != nil {
		logger.Error("triggering pisp linking workflow failed", zap.String("consentRequestId", id), zap.Error(err))
	}
	// an OTP validation flow may be waiting on the same callback
	if err := deferredjob.Trigger(r.Context(), s.deps.PubSub, otpvalidate.NotificationChannel(id), json.RawMessage(payload)); err != nil {
		logger.Error("triggering otp validation flow failed", zap.String("consentRequestId", id), zap.Error(err))
	}
	respondAccepted(w)
}

// HandlePatchConsentRequestsID delivers the user's auth token into the
// suspended DFSP linking workflow.
func (s *Server) HandlePatchConsentRequestsID(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["ID"]
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, tperror.GenericLinkingError)
		return
	}
	if err := dfsplinking.TriggerWorkflow(r.Context(), dfsplinking.PhaseRequestAuthToken, id, s.deps.PubSub, json.RawMessage(payload)); err != nil {
		logger.Error("triggering dfsp linking workflow failed", zap.String("consentRequestId", id), zap.Error(err))
	}
	respondAccepted(w)
}

// HandlePostConsents delivers the consent grant into the PISP linking
// workflow. Correlation runs on the consent request id carried in the
// body, not the freshly minted consent id.
func (s *Server) HandlePostConsents(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, tperror.GenericLinkingError)
		return
	}
	var consent model.ConsentsPostRequest
	if err := json.Unmarshal(payload, &consent); err != nil || consent.ConsentRequestId == "" {
		respondWithError(w, http.StatusBadRequest, tperror.GenericLinkingError)
		return
	}
	if err := pisplinking.TriggerWorkflow(r.Context(), pisplinking.PhaseWaitOnConsent, consent.ConsentRequestId, s.deps.PubSub, json.RawMessage(payload)); err != nil {
		logger.Error("triggering pisp linking workflow failed", zap.String("consentRequestId", consent.ConsentRequestId), zap.Error(err))
	}
	respondAccepted(w)
}

// HandlePutConsentsID routes a consent update to the right suspended
// linking step. The credential status discriminates the PISP's signed
// credential (PENDING) from the auth service verdict (VERIFIED); an
// error payload is fanned out to both since either step may be waiting.
func (s *Server) HandlePutConsentsID(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["ID"]
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, tperror.GenericLinkingError)
		return
	}
	var put model.ConsentsIDPutResponse
	if err := json.Unmarshal(payload, &put); err != nil {
		respondWithError(w, http.StatusBadRequest, tperror.GenericLinkingError)
		return
	}

	phases := []dfsplinking.Phase{}
	switch {
	case put.ErrorInformation != nil:
		phases = append(phases, dfsplinking.PhaseWaitOnSignedCredential, dfsplinking.PhaseWaitOnAuthServiceResponse)
	case put.Credential != nil && put.Credential.Status == model.CREDENTIAL_STATUS_VERIFIED:
		phases = append(phases, dfsplinking.PhaseWaitOnAuthServiceResponse)
	default:
		phases = append(phases, dfsplinking.PhaseWaitOnSignedCredential)
	}
	for _, phase := range phases {
		if err := dfsplinking.TriggerWorkflow(r.Context(), phase, id, s.deps.PubSub, json.RawMessage(payload)); err != nil {
			logger.Error("triggering dfsp linking workflow failed", zap.String("consentId", id), zap.String("phase", string(phase)), zap.Error(err))
		}
	}
	respondAccepted(w)
}

// HandlePatchConsentsID is the PISP's final notification that the link
// is established. Nothing is waiting on it; acknowledge and log.
func (s *Server) HandlePatchConsentsID(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["ID"]
	logger.Info("consent verification notification received", zap.String("consentId", id))
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "OK"})
}

// outbound, user facing

type requestConsentBody struct {
	ConsentRequestId string              `json:"consentRequestId"`
	UserId           string              `json:"userId"`
	Scopes           []model.Scope       `json:"scopes"`
	AuthChannels     []model.AuthChannel `json:"authChannels"`
	CallbackUri      string              `json:"callbackUri"`
	ToParticipantId  string              `json:"toParticipantId"`
}

// HandlePostLinkingRequestConsent runs the PISP linking flow up to the
// channel selection synchronously and returns the workflow view.
func (s *Server) HandlePostLinkingRequestConsent(w http.ResponseWriter, r *http.Request) {
	var body requestConsentBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, http.StatusBadRequest, tperror.GenericLinkingError)
		return
	}
	m, err := pisplinking.Create(&pisplinking.Data{
		ConsentRequestId: body.ConsentRequestId,
		ToParticipantId:  body.ToParticipantId,
		Request: &model.ConsentRequestsPostRequest{
			ConsentRequestId: body.ConsentRequestId,
			UserId:           body.UserId,
			Scopes:           body.Scopes,
			AuthChannels:     body.AuthChannels,
			CallbackUri:      body.CallbackUri,
		},
	}, s.pispLinkingConfig(body.ConsentRequestId))
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, tperror.Reformat(err, tperror.ServerError))
		return
	}
	if err := m.RequestConsent(r.Context()); err != nil {
		respondWithJSON(w, http.StatusInternalServerError, m.GetResponse())
		return
	}
	respondWithJSON(w, http.StatusOK, m.GetResponse())
}

type authenticateBody struct {
	AuthToken string `json:"authToken"`
}

// HandlePostLinkingAuthenticate resumes a persisted PISP linking flow
// with the auth token the user obtained and waits for the consent.
func (s *Server) HandlePostLinkingAuthenticate(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["ID"]
	var body authenticateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, http.StatusBadRequest, tperror.GenericLinkingError)
		return
	}
	m, err := pisplinking.LoadFromKVS(r.Context(), s.pispLinkingConfig(id))
	if err != nil {
		respondWithError(w, http.StatusNotFound, tperror.Reformat(err, tperror.GenericLinkingError))
		return
	}
	if err := m.Authenticate(r.Context(), body.AuthToken); err != nil {
		respondWithJSON(w, http.StatusInternalServerError, m.GetResponse())
		return
	}
	respondWithJSON(w, http.StatusOK, m.GetResponse())
}

// HandleGetAccounts lists the user's linkable accounts from the DFSP
// backend so a PISP can present them before requesting consent.
func (s *Server) HandleGetAccounts(w http.ResponseWriter, r *http.Request) {
	userId := mux.Vars(r)["ID"]
	accounts, err := s.deps.Backend.GetUserAccounts(r.Context(), userId)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, tperror.Reformat(err, tperror.GenericLinkingError))
		return
	}
	respondWithJSON(w, http.StatusOK, map[string][]model.Account{"accounts": accounts})
}

func (s *Server) pispLinkingConfig(key string) pisplinking.ModelConfig {
	return pisplinking.ModelConfig{
		Key:        key,
		KVS:        s.deps.KVS,
		PubSub:     s.deps.PubSub,
		Thirdparty: s.deps.Thirdparty,
		Timeouts:   s.deps.Conf.Timeouts,
	}
}
