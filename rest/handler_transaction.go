package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pispworks/thirdparty-adapter/flows/dfsptransaction"
	"github.com/pispworks/thirdparty-adapter/flows/pisptransaction"
	"github.com/pispworks/thirdparty-adapter/logger"
	"github.com/pispworks/thirdparty-adapter/model"
	"github.com/pispworks/thirdparty-adapter/tperror"
	"go.uber.org/zap"
)

// HandlePostTransactionRequests accepts a PISP initiated transaction and
// runs the DFSP transaction workflow in the background.
func (s *Server) HandlePostTransactionRequests(w http.ResponseWriter, r *http.Request) {
	var request model.ThirdpartyTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondWithError(w, http.StatusBadRequest, tperror.TransactionRequestValidationError)
		return
	}
	m, err := dfsptransaction.Create(&dfsptransaction.Data{
		TransactionRequestId: request.TransactionRequestId,
		ParticipantId:        r.Header.Get(headerSource),
		Request:              &request,
	}, dfsptransaction.ModelConfig{
		Key:           request.TransactionRequestId,
		KVS:           s.deps.KVS,
		PubSub:        s.deps.PubSub,
		Backend:       s.deps.Backend,
		Thirdparty:    s.deps.Thirdparty,
		AuthService:   s.deps.AuthService,
		SDK:           s.deps.SDK,
		ParticipantId: s.deps.Conf.ParticipantId,
		Timeouts:      s.deps.Conf.Timeouts,
		TestOverrides: s.deps.Conf.TestOverrides,
	})
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, tperror.Reformat(err, tperror.ServerError))
		return
	}
	go func() {
		if err := m.Run(context.Background()); err != nil {
			logger.Error("dfsp transaction workflow failed", zap.String("transactionRequestId", request.TransactionRequestId), zap.Error(err))
		}
	}()
	respondAccepted(w)
}

// HandlePutTransactionRequestsID delivers the switch acknowledgement to
// the PISP transaction workflow waiting on initiation.
func (s *Server) HandlePutTransactionRequestsID(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["ID"]
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, tperror.GenericTransactionError)
		return
	}
	if err := pisptransaction.TriggerWorkflow(r.Context(), pisptransaction.PhaseWaitOnTransactionPut, id, s.deps.PubSub, json.RawMessage(payload)); err != nil {
		logger.Error("triggering pisp transaction workflow failed", zap.String("transactionRequestId", id), zap.Error(err))
	}
	respondAccepted(w)
}

// HandlePatchTransactionRequestsID delivers the completion notification
// to the PISP transaction workflow waiting on approval.
func (s *Server) HandlePatchTransactionRequestsID(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["ID"]
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, tperror.GenericTransactionError)
		return
	}
	if err := pisptransaction.TriggerWorkflow(r.Context(), pisptransaction.PhaseWaitOnApprovalPatch, id, s.deps.PubSub, json.RawMessage(payload)); err != nil {
		logger.Error("triggering pisp transaction workflow failed", zap.String("transactionRequestId", id), zap.Error(err))
	}
	respondAccepted(w)
}

// HandlePostAuthorizations delivers the payee DFSP's authorization
// request into the PISP transaction workflow. Correlation runs on the
// transaction request id carried in the body.
func (s *Server) HandlePostAuthorizations(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, tperror.GenericTransactionError)
		return
	}
	var request model.AuthorizationRequest
	if err := json.Unmarshal(payload, &request); err != nil || request.TransactionRequestId == "" {
		respondWithError(w, http.StatusBadRequest, tperror.GenericTransactionError)
		return
	}
	if err := pisptransaction.TriggerWorkflow(r.Context(), pisptransaction.PhaseWaitOnAuthorizationPost, request.TransactionRequestId, s.deps.PubSub, json.RawMessage(payload)); err != nil {
		logger.Error("triggering pisp transaction workflow failed", zap.String("transactionRequestId", request.TransactionRequestId), zap.Error(err))
	}
	respondAccepted(w)
}

// HandlePutAuthorizationsID delivers the user's authorization verdict to
// the DFSP transaction workflow. The path id is the authorization
// request id, which is what the suspended step subscribed on.
func (s *Server) HandlePutAuthorizationsID(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["ID"]
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, tperror.GenericTransactionError)
		return
	}
	if err := dfsptransaction.TriggerWorkflow(r.Context(), dfsptransaction.PhaseWaitOnAuthResponse, id, s.deps.PubSub, json.RawMessage(payload)); err != nil {
		logger.Error("triggering dfsp transaction workflow failed", zap.String("authorizationRequestId", id), zap.Error(err))
	}
	respondAccepted(w)
}

// HandlePutVerificationsID delivers the auth service verdict to the DFSP
// transaction workflow.
func (s *Server) HandlePutVerificationsID(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["ID"]
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, tperror.GenericTransactionError)
		return
	}
	if err := dfsptransaction.TriggerWorkflow(r.Context(), dfsptransaction.PhaseWaitOnVerificationResponse, id, s.deps.PubSub, json.RawMessage(payload)); err != nil {
		logger.Error("triggering dfsp transaction workflow failed", zap.String("verificationRequestId", id), zap.Error(err))
	}
	respondAccepted(w)
}

// outbound, user facing

type partyLookupBody struct {
	TransactionRequestId string            `json:"transactionRequestId"`
	Payee                model.PartyIdInfo `json:"payee"`
}

// HandlePostPartyLookup opens a PISP transaction by resolving the payee
// so the user can confirm the counterparty before initiating.
func (s *Server) HandlePostPartyLookup(w http.ResponseWriter, r *http.Request) {
	var body partyLookupBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, http.StatusBadRequest, tperror.GenericTransactionError)
		return
	}
	m, err := pisptransaction.Create(&pisptransaction.Data{
		TransactionRequestId: body.TransactionRequestId,
		Request: &model.ThirdpartyTransactionRequest{
			TransactionRequestId: body.TransactionRequestId,
			Payee:                model.Party{PartyIdInfo: body.Payee},
		},
	}, s.pispTransactionConfig(body.TransactionRequestId))
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, tperror.Reformat(err, tperror.ServerError))
		return
	}
	if err := m.RequestPartyLookup(r.Context()); err != nil {
		respondWithJSON(w, http.StatusInternalServerError, m.GetResponse())
		return
	}
	respondWithJSON(w, http.StatusOK, m.GetResponse())
}

// HandlePostTransactionInitiate resumes a persisted PISP transaction
// with the full request and waits for the authorization challenge.
func (s *Server) HandlePostTransactionInitiate(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["ID"]
	var request model.ThirdpartyTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		respondWithError(w, http.StatusBadRequest, tperror.GenericTransactionError)
		return
	}
	m, err := pisptransaction.LoadFromKVS(r.Context(), s.pispTransactionConfig(id))
	if err != nil {
		respondWithError(w, http.StatusNotFound, tperror.Reformat(err, tperror.GenericTransactionError))
		return
	}
	request.TransactionRequestId = id
	m.Data.Request = &request
	if err := m.Initiate(r.Context()); err != nil {
		respondWithJSON(w, http.StatusInternalServerError, m.GetResponse())
		return
	}
	respondWithJSON(w, http.StatusOK, m.GetResponse())
}

type approveBody struct {
	AuthorizationResponse model.AuthorizationResponse `json:"authorizationResponse"`
}

// HandlePostTransactionApprove submits the user's signed authorization
// and waits for the completion notification.
func (s *Server) HandlePostTransactionApprove(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["ID"]
	var body approveBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, http.StatusBadRequest, tperror.GenericTransactionError)
		return
	}
	m, err := pisptransaction.LoadFromKVS(r.Context(), s.pispTransactionConfig(id))
	if err != nil {
		respondWithError(w, http.StatusNotFound, tperror.Reformat(err, tperror.GenericTransactionError))
		return
	}
	if err := m.Approve(r.Context(), &body.AuthorizationResponse); err != nil {
		respondWithJSON(w, http.StatusInternalServerError, m.GetResponse())
		return
	}
	respondWithJSON(w, http.StatusOK, m.GetResponse())
}

func (s *Server) pispTransactionConfig(key string) pisptransaction.ModelConfig {
	return pisptransaction.ModelConfig{
		Key:        key,
		KVS:        s.deps.KVS,
		PubSub:     s.deps.PubSub,
		Thirdparty: s.deps.Thirdparty,
		SDK:        s.deps.SDK,
		Timeouts:   s.deps.Conf.Timeouts,
	}
}
