package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"google.golang.org/grpc"
	v1 "k8s.io/externaljwt/apis/v1"
	"k8s.io/externaljwt/apis/v1alpha1"

	"github.com/zarvd/jwks-signer/internal/authn"
	"github.com/zarvd/jwks-signer/internal/httpapi"
	"github.com/zarvd/jwks-signer/internal/jwk"
	"github.com/zarvd/jwks-signer/internal/key"
	"github.com/zarvd/jwks-signer/internal/server"
)

type CLI struct {
	Serve   ServeCmd   `cmd:"" help:"Serve the ExternalJWTSigner API and the HTTP key set endpoints"`
	Check   CheckCmd   `cmd:"" help:"Parse a JWK set document and report its keys"`
	Convert ConvertCmd `cmd:"" help:"Convert a PEM RSA private key into a JWK set document"`
}

type ServeCmd struct {
	Socket             string        `required:"" env:"SIGNER_SOCKET" help:"Unix domain socket to listen on"`
	JWKSFile           string        `name:"jwks-file" type:"existingfile" required:"" env:"SIGNER_JWKS_FILE" help:"Path to the JWK set document"`
	SigningKeyID       string        `name:"signing-key-id" env:"SIGNER_SIGNING_KEY_ID" help:"ID of the key used to sign tokens, defaults to the only private key"`
	ReloadInterval     time.Duration `default:"1m" env:"SIGNER_RELOAD_INTERVAL" help:"How often the JWK set document is read again, 0 disables reloading"`
	MaxTokenExpiration time.Duration `default:"10m" env:"SIGNER_MAX_TOKEN_EXPIRATION" help:"Maximum lifetime of issued tokens"`
	HTTPAddr           string        `name:"http-addr" default:":8080" env:"SIGNER_HTTP_ADDR" help:"Address of the HTTP server, empty disables it"`
	Issuer             string        `env:"SIGNER_ISSUER" help:"Issuer required by the token authenticator"`
	Audience           string        `env:"SIGNER_AUDIENCE" help:"Audience required by the token authenticator"`
}

func (cmd *ServeCmd) Run(ctx context.Context, logger *slog.Logger) error {
	km, err := key.NewKeyManager(ctx, logger, key.Config{
		Source:         key.FileSource(cmd.JWKSFile),
		SigningKeyID:   cmd.SigningKeyID,
		ReloadInterval: cmd.ReloadInterval,
		Expiration:     cmd.MaxTokenExpiration,
	})
	if err != nil {
		return fmt.Errorf("failed to create key manager: %w", err)
	}
	defer km.Close()

	v1Server := server.NewV1Server(logger, km)
	v1alpha1Server := server.NewV1Alpha1Server(logger, km)

	grpcServer := grpc.NewServer()
	v1.RegisterExternalJWTSignerServer(grpcServer, v1Server)
	v1alpha1.RegisterExternalJWTSignerServer(grpcServer, v1alpha1Server)

	listener, err := net.Listen("unix", cmd.Socket)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	defer listener.Close()

	go func() {
		logger.Info("serving on", slog.String("address", listener.Addr().String()))
		if err := grpcServer.Serve(listener); err != nil {
			logger.Error("failed to serve", slog.Any("error", err))
		}
	}()

	httpDone := make(chan struct{})
	if cmd.HTTPAddr != "" {
		httpListener, err := net.Listen("tcp", cmd.HTTPAddr)
		if err != nil {
			grpcServer.Stop()
			return fmt.Errorf("failed to listen: %w", err)
		}
		authenticator := authn.NewAuthenticator(km, authn.Config{
			Issuer:   cmd.Issuer,
			Audience: cmd.Audience,
		})
		httpServer := httpapi.NewServer(logger, km, authenticator)
		go func() {
			defer close(httpDone)
			if err := httpServer.Serve(ctx, httpListener); err != nil {
				logger.Error("failed to serve http", slog.Any("error", err))
			}
		}()
	} else {
		close(httpDone)
	}

	<-ctx.Done()
	grpcServer.GracefulStop()
	<-httpDone
	logger.Info("shutting down")
	return nil
}

type CheckCmd struct {
	JWKSFile string `arg:"" name:"jwks-file" type:"existingfile" help:"Path to the JWK set document"`
	Strict   bool   `help:"Fail when any key was skipped"`
}

func (cmd *CheckCmd) Run(ctx context.Context) error {
	doc, err := key.FileSource(cmd.JWKSFile)(ctx)
	if err != nil {
		return err
	}
	set, err := jwk.Parse(doc)
	if err != nil {
		return err
	}
	report(os.Stdout, set)
	if cmd.Strict && len(set.Diagnostics()) > 0 {
		return fmt.Errorf("%d key(s) skipped", len(set.Diagnostics()))
	}
	return nil
}

func report(w io.Writer, set *jwk.KeySet) {
	signers, verifiers := set.Signers(), set.Verifiers()
	for _, kid := range slices.Sorted(maps.Keys(signers)) {
		fmt.Fprintf(w, "signer\t%s\t%s\n", kid, signers[kid].Algorithm())
	}
	for _, kid := range slices.Sorted(maps.Keys(verifiers)) {
		fmt.Fprintf(w, "verifier\t%s\t%s\n", kid, verifiers[kid].Algorithm())
	}
	for _, diag := range set.Diagnostics() {
		fmt.Fprintf(w, "skipped\t%d\t%s\t%v\n", diag.Index, diag.KeyID, diag.Err)
	}
}

type ConvertCmd struct {
	PrivateKey string `arg:"" name:"private-key" type:"filecontent" help:"Path to the PEM encoded RSA private key"`
	KeyID      string `name:"key-id" required:"" help:"ID of the key in the generated document"`
	Algorithm  string `name:"alg" default:"RS256" enum:"RS256,RS384,RS512" help:"Signature algorithm of the key"`
	WithPublic bool   `help:"Also add the public half as a verification key"`
	Output     string `short:"o" type:"path" help:"Write the document to this file instead of stdout"`
}

func (cmd *ConvertCmd) Run() error {
	privateKey, err := key.DecodeRSAPrivateKey(cmd.PrivateKey)
	if err != nil {
		return fmt.Errorf("failed to decode private key: %w", err)
	}
	doc, err := key.EncodeJWKS(cmd.KeyID, cmd.Algorithm, privateKey, cmd.WithPublic)
	if err != nil {
		return err
	}
	doc = append(doc, '\n')
	if cmd.Output == "" {
		_, err = os.Stdout.Write(doc)
		return err
	}
	return os.WriteFile(cmd.Output, doc, 0o600)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var cli CLI
	cliCtx := kong.Parse(&cli)

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cliCtx.BindTo(ctx, (*context.Context)(nil))
	cliCtx.Bind(logger)

	if err := cliCtx.Run(); err != nil {
		logger.Error("failed to run CLI", slog.Any("error", err))
		os.Exit(1)
	}
}
