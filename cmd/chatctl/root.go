package main

import (
	"context"
	goerrors "errors"
	"fmt"
	"os"
	"time"

	"vibehive/domain"
	"vibehive/infrastructure/grpc/client"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const callTimeout = 10 * time.Second

const (
	serverKey = "server"
	tokenKey  = "token"
	asKey     = "as"
)

type options struct {
	server string
	token  string
	as     string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	v := viper.New()
	var cfgFile string
	root := &cobra.Command{
		Use:           "chatctl",
		Short:         "Talk to a vibehive server over gRPC",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(v, cfgFile)
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.chatctl.yaml)")
	root.PersistentFlags().String(serverKey, "localhost:50051", "gRPC address of the server")
	root.PersistentFlags().String(tokenKey, "", "bearer token, required when the server has auth enabled")
	root.PersistentFlags().String(asKey, "", "participant identity to act as")
	_ = v.BindPFlag(serverKey, root.PersistentFlags().Lookup(serverKey))
	_ = v.BindPFlag(tokenKey, root.PersistentFlags().Lookup(tokenKey))
	_ = v.BindPFlag(asKey, root.PersistentFlags().Lookup(asKey))
	_ = v.BindEnv(serverKey, "VIBEHIVE_SERVER")
	_ = v.BindEnv(tokenKey, "VIBEHIVE_TOKEN")
	_ = v.BindEnv(asKey, "VIBEHIVE_USER")

	root.AddCommand(
		newHistoryCmd(opts),
		newConversationsCmd(opts),
		newSendCmd(opts),
		newListenCmd(opts),
		newInspectCmd(),
		newTokenCmd(),
	)
	return root
}

// load resolves the options: flag, then environment, then config file, then default.
func (o *options) load(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
		v.SetConfigType("yaml")
		v.SetConfigName(".chatctl")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !goerrors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}
	o.server = v.GetString(serverKey)
	o.token = v.GetString(tokenKey)
	o.as = v.GetString(asKey)
	return nil
}

func (o *options) connect() (*client.MessageClient, error) {
	return client.Dial(o.server, o.token)
}

// identity is the participant the command acts as. With a token the server
// resolves it, so --as may be left out.
func (o *options) identity() (domain.ParticipantID, error) {
	if o.as == "" && o.token == "" {
		return "", fmt.Errorf("--as is required without --token")
	}
	return domain.ParticipantID(o.as), nil
}

func callContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), callTimeout)
}
