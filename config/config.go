package config

type StorageType string

const STORAGE_TYPE_REDIS StorageType = "redis"
const STORAGE_TYPE_INMEM StorageType = "memory"

type Config struct {
	RedisConfig   RedisConfig
	StorageType   StorageType
	HttpPort      int
	ParticipantId string
	Endpoints     Endpoints
	Timeouts      Timeouts
	TestOverrides TestOverrides
}

type RedisConfig struct {
	Addrs     []string
	Namespace string
}

type Endpoints struct {
	DFSPBackendUrl string
	ThirdpartyUrl  string
	AuthServiceUrl string
	SDKOutgoingUrl string
}

// Timeouts holds the per-phase wait windows, in seconds. Phases that
// need an end user to act on the PISP side get longer windows.
type Timeouts struct {
	AuthTokenExchangeSeconds int
	GrantConsentSeconds      int
	VerifyConsentSeconds     int
	AuthorizationSeconds     int
	VerificationSeconds      int
	PartyLookupSeconds       int
	TransactionPutSeconds    int
	ApprovalSeconds          int
	OTPValidateSeconds       int
}

// TestOverrides bypasses otherwise random or derived values. Zero valued
// in production; every use is logged at warn level.
type TestOverrides struct {
	ConsentIDLookup map[string]string
	FixedChallenge  string
}
