package main

import (
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pispworks/thirdparty-adapter/agent"
	"github.com/pispworks/thirdparty-adapter/config"
	"github.com/pispworks/thirdparty-adapter/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type cfg struct {
	config.Config
}
type cli struct {
	cfg cfg
}

func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().String("config-file", "", "Path to config file.")
	cmd.Flags().String("redis-addr", "localhost:6379", "comma separated list of redis host:port")
	cmd.Flags().String("namespace", "thirdparty", "namespace used in storage and pubsub channels")
	cmd.Flags().Int("http-port", 4005, "http port for rest endpoints")
	cmd.Flags().String("storage-impl", "redis", "implementation of underline storage")
	cmd.Flags().String("participant-id", "", "participant id this adapter acts for")
	cmd.Flags().String("dfsp-backend-url", "http://localhost:9000", "DFSP backend base url")
	cmd.Flags().String("thirdparty-url", "http://localhost:9001", "third-party API base url")
	cmd.Flags().String("auth-service-url", "http://localhost:9002", "authorization service base url")
	cmd.Flags().String("sdk-outgoing-url", "http://localhost:9003", "sdk outgoing base url")
	cmd.Flags().Int("phase-timeout-seconds", 30, "default wait window for suspended workflow phases")
	cmd.Flags().Bool("debug", false, "enable debug logging")
	return viper.BindPFlags(cmd.Flags())
}

func (c *cli) setupConfig(cmd *cobra.Command, args []string) error {
	var err error

	configFile, err := cmd.Flags().GetString("config-file")
	if err != nil {
		return err
	}
	viper.SetConfigFile(configFile)

	if err = viper.ReadInConfig(); err != nil {
		// it's ok if config file doesn't exist
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}

	c.cfg.RedisConfig.Addrs = strings.Split(viper.GetString("redis-addr"), ",")
	c.cfg.RedisConfig.Namespace = viper.GetString("namespace")
	c.cfg.HttpPort = viper.GetInt("http-port")
	c.cfg.StorageType = config.StorageType(viper.GetString("storage-impl"))
	c.cfg.ParticipantId = viper.GetString("participant-id")
	c.cfg.Endpoints.DFSPBackendUrl = viper.GetString("dfsp-backend-url")
	c.cfg.Endpoints.ThirdpartyUrl = viper.GetString("thirdparty-url")
	c.cfg.Endpoints.AuthServiceUrl = viper.GetString("auth-service-url")
	c.cfg.Endpoints.SDKOutgoingUrl = viper.GetString("sdk-outgoing-url")

	phaseTimeout := viper.GetInt("phase-timeout-seconds")
	c.cfg.Timeouts = config.Timeouts{
		AuthTokenExchangeSeconds: viper.GetInt("auth-token-exchange-seconds"),
		GrantConsentSeconds:      viper.GetInt("grant-consent-seconds"),
		VerifyConsentSeconds:     viper.GetInt("verify-consent-seconds"),
		AuthorizationSeconds:     viper.GetInt("authorization-seconds"),
		VerificationSeconds:      viper.GetInt("verification-seconds"),
		PartyLookupSeconds:       viper.GetInt("party-lookup-seconds"),
		TransactionPutSeconds:    viper.GetInt("transaction-put-seconds"),
		ApprovalSeconds:          viper.GetInt("approval-seconds"),
		OTPValidateSeconds:       viper.GetInt("otp-validate-seconds"),
	}
	applyDefaultTimeout(&c.cfg.Timeouts, phaseTimeout)

	c.cfg.TestOverrides.ConsentIDLookup = viper.GetStringMapString("test-consent-id-lookup")
	c.cfg.TestOverrides.FixedChallenge = viper.GetString("test-fixed-challenge")
	return logger.InitLogger(viper.GetBool("debug"))
}

func applyDefaultTimeout(t *config.Timeouts, def int) {
	for _, field := range []*int{
		&t.AuthTokenExchangeSeconds,
		&t.GrantConsentSeconds,
		&t.VerifyConsentSeconds,
		&t.AuthorizationSeconds,
		&t.VerificationSeconds,
		&t.PartyLookupSeconds,
		&t.TransactionPutSeconds,
		&t.ApprovalSeconds,
		&t.OTPValidateSeconds,
	} {
		if *field <= 0 {
			*field = def
		}
	}
}

func (c *cli) run(cmd *cobra.Command, args []string) error {
	var err error
	agent, err := agent.New(c.cfg.Config)
	if err != nil {
		panic(err)
	}
	err = agent.Start()
	if err != nil {
		panic(err)
	}
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	defer logger.Sync()
	return agent.Shutdown()
}

func main() {
	cli := &cli{}

	cmd := &cobra.Command{
		Use:     "thirdparty-adapter",
		PreRunE: cli.setupConfig,
		RunE:    cli.run,
	}

	if err := setupFlags(cmd); err != nil {
		log.Fatal(err)
	}

	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
