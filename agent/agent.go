package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/pispworks/thirdparty-adapter/clients"
	"github.com/pispworks/thirdparty-adapter/config"
	"github.com/pispworks/thirdparty-adapter/logger"
	"github.com/pispworks/thirdparty-adapter/persistence"
	"github.com/pispworks/thirdparty-adapter/persistence/inmem"
	"github.com/pispworks/thirdparty-adapter/persistence/redis"
	"github.com/pispworks/thirdparty-adapter/pubsub"
	"github.com/pispworks/thirdparty-adapter/rest"
)

// Agent wires storage, pub/sub, the outbound clients and the HTTP
// server together and owns their lifecycle.
type Agent struct {
	Config       config.Config
	kvs          persistence.KVS
	ps           pubsub.PubSub
	deps         *rest.Deps
	httpServer   *rest.Server
	shutdown     bool
	shutdownLock sync.Mutex
}

func New(conf config.Config) (*Agent, error) {
	a := &Agent{
		Config: conf,
	}
	setup := []func() error{
		a.setupStorage,
		a.setupPubSub,
		a.setupClients,
		a.setupHttpServer,
	}
	for _, fn := range setup {
		if err := fn(); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func (a *Agent) setupStorage() error {
	switch a.Config.StorageType {
	case config.STORAGE_TYPE_REDIS:
		a.kvs = redis.NewRedisKVS(redis.Config{
			Addrs:     a.Config.RedisConfig.Addrs,
			Namespace: a.Config.RedisConfig.Namespace,
		})
	case config.STORAGE_TYPE_INMEM:
		a.kvs = inmem.NewInMemKVS()
	default:
		return fmt.Errorf("unknown storage implementation %s", a.Config.StorageType)
	}
	return a.kvs.Connect(context.Background())
}

func (a *Agent) setupPubSub() error {
	switch a.Config.StorageType {
	case config.STORAGE_TYPE_REDIS:
		a.ps = pubsub.NewRedisPubSub(pubsub.RedisConfig{
			Addrs:     a.Config.RedisConfig.Addrs,
			Namespace: a.Config.RedisConfig.Namespace,
		})
	default:
		a.ps = pubsub.NewInMemPubSub()
	}
	return a.ps.Connect(context.Background())
}

func (a *Agent) setupClients() error {
	a.deps = &rest.Deps{
		KVS:         a.kvs,
		PubSub:      a.ps,
		Backend:     clients.NewDFSPBackendClient(clients.HTTPConfig{BaseUrl: a.Config.Endpoints.DFSPBackendUrl}),
		Thirdparty:  clients.NewThirdpartyRequestsClient(clients.HTTPConfig{BaseUrl: a.Config.Endpoints.ThirdpartyUrl}),
		AuthService: clients.NewAuthServiceClient(clients.HTTPConfig{BaseUrl: a.Config.Endpoints.AuthServiceUrl}),
		SDK:         clients.NewSDKOutgoingClient(clients.HTTPConfig{BaseUrl: a.Config.Endpoints.SDKOutgoingUrl}),
		Conf:        a.Config,
	}
	return nil
}

func (a *Agent) setupHttpServer() error {
	var err error
	a.httpServer, err = rest.NewServer(a.Config.HttpPort, a.deps)
	if err != nil {
		return err
	}
	return nil
}

func (a *Agent) Start() error {
	go func() {
		err := a.httpServer.Start()
		if err != nil {
			logger.Error("http server stopped")
		}
	}()
	return nil
}

func (a *Agent) Shutdown() error {
	logger.Info("shutting down server")
	a.shutdownLock.Lock()
	defer a.shutdownLock.Unlock()
	if a.shutdown {
		return nil
	}
	a.shutdown = true

	shutdown := []func() error{
		a.httpServer.Stop,
		a.ps.Disconnect,
		a.kvs.Disconnect,
	}
	for _, fn := range shutdown {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}
