package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/pispworks/thirdparty-adapter/clients"
	"github.com/pispworks/thirdparty-adapter/config"
	"github.com/pispworks/thirdparty-adapter/logger"
	"github.com/pispworks/thirdparty-adapter/persistence"
	"github.com/pispworks/thirdparty-adapter/pubsub"
	"github.com/pispworks/thirdparty-adapter/tperror"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Deps bundles everything a workflow model needs, assembled once at
// startup and passed into each model constructor. No ambient state.
type Deps struct {
	KVS         persistence.KVS
	PubSub      pubsub.PubSub
	Backend     clients.DFSPBackend
	Thirdparty  clients.ThirdpartyRequests
	AuthService clients.AuthServiceRequests
	SDK         clients.SDKOutgoing
	Conf        config.Config
}

type Server struct {
	http.Server
	Port int
	deps *Deps
}

func NewServer(httpPort int, deps *Deps) (*Server, error) {
	s := &Server{
		Server: http.Server{
			Addr: fmt.Sprintf(":%d", httpPort),
		},
		Port: httpPort,
		deps: deps,
	}

	router := mux.NewRouter()
	// inbound protocol callbacks
	router.HandleFunc("/consentRequests", s.HandlePostConsentRequests).Methods(http.MethodPost)
	router.HandleFunc("/consentRequests/{ID}", s.HandlePutConsentRequestsID).Methods(http.MethodPut)
	router.HandleFunc("/consentRequests/{ID}", s.HandlePatchConsentRequestsID).Methods(http.MethodPatch)
	router.HandleFunc("/consents", s.HandlePostConsents).Methods(http.MethodPost)
	router.HandleFunc("/consents/{ID}", s.HandlePutConsentsID).Methods(http.MethodPut)
	router.HandleFunc("/consents/{ID}", s.HandlePatchConsentsID).Methods(http.MethodPatch)
	router.HandleFunc("/thirdpartyRequests/transactions", s.HandlePostTransactionRequests).Methods(http.MethodPost)
	router.HandleFunc("/thirdpartyRequests/transactions/{ID}", s.HandlePutTransactionRequestsID).Methods(http.MethodPut)
	router.HandleFunc("/thirdpartyRequests/transactions/{ID}", s.HandlePatchTransactionRequestsID).Methods(http.MethodPatch)
	router.HandleFunc("/thirdpartyRequests/authorizations", s.HandlePostAuthorizations).Methods(http.MethodPost)
	router.HandleFunc("/thirdpartyRequests/authorizations/{ID}", s.HandlePutAuthorizationsID).Methods(http.MethodPut)
	router.HandleFunc("/thirdpartyRequests/verifications/{ID}", s.HandlePutVerificationsID).Methods(http.MethodPut)
	// outbound user facing API
	router.HandleFunc("/linking/accounts/{ID}", s.HandleGetAccounts).Methods(http.MethodGet)
	router.HandleFunc("/linking/request-consent", s.HandlePostLinkingRequestConsent).Methods(http.MethodPost)
	router.HandleFunc("/linking/request-consent/{ID}/authenticate", s.HandlePostLinkingAuthenticate).Methods(http.MethodPost)
	router.HandleFunc("/thirdpartyTransaction/partyLookup", s.HandlePostPartyLookup).Methods(http.MethodPost)
	router.HandleFunc("/thirdpartyTransaction/{ID}/initiate", s.HandlePostTransactionInitiate).Methods(http.MethodPost)
	router.HandleFunc("/thirdpartyTransaction/{ID}/approve", s.HandlePostTransactionApprove).Methods(http.MethodPost)
	router.HandleFunc("/otp/validate", s.HandlePostOTPValidate).Methods(http.MethodPost)

	router.HandleFunc("/health", s.HandleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.Use(loggingMiddleware)
	s.Handler = router
	return s, nil
}

func (s *Server) Start() error {
	logger.Info("starting http server", zap.Int("port", s.Port))
	if err := s.ListenAndServe(); err != nil {
		return err
	}
	return nil
}

func (s *Server) Stop() error {
	logger.Info("stopping http server")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		logger.Error("error shutting down http server")
	}
	return nil
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := "OK"
	if !s.deps.PubSub.IsConnected() {
		status = "DEGRADED"
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": status})
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Info(r.RequestURI)
		next.ServeHTTP(w, r)
	})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondAccepted(w http.ResponseWriter) {
	respondWithJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func respondWithError(w http.ResponseWriter, code int, tpErr tperror.TPError) {
	respondWithJSON(w, code, map[string]tperror.ErrorInformation{"errorInformation": tpErr.Information()})
}
