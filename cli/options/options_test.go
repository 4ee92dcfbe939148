package options

import (
	"flag"
	"testing"

	"github.com/nspcc-dev/node-crawler/pkg/config"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func newTestContext(t *testing.T, args map[string]string) *cli.Context {
	t.Helper()
	set := flag.NewFlagSet("flagSet", flag.ContinueOnError)
	for name, v := range args {
		set.String(name, v, "")
	}
	return cli.NewContext(cli.NewApp(), set, nil)
}

func TestGetConfigFromContextDefaults(t *testing.T) {
	ctx := newTestContext(t, map[string]string{})
	cfg, err := GetConfigFromContext(ctx)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:4132", cfg.ListenAddr)
	require.Empty(t, cfg.DB.Driver)
}

func TestGetConfigFromContextOverridesAddr(t *testing.T) {
	set := flag.NewFlagSet("flagSet", flag.ContinueOnError)
	set.String(Addr.Name, "0.0.0.0:5000", "")
	ctx := cli.NewContext(cli.NewApp(), set, nil)
	require.NoError(t, set.Set(Addr.Name, "0.0.0.0:5000"))

	cfg, err := GetConfigFromContext(ctx)
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:5000", cfg.ListenAddr)
}

func TestGetConfigFromContextRejectsBadDBDriver(t *testing.T) {
	set := flag.NewFlagSet("flagSet", flag.ContinueOnError)
	set.String("db-driver", "", "")
	set.String("db-name", "", "")
	ctx := cli.NewContext(cli.NewApp(), set, nil)
	require.NoError(t, set.Set("db-driver", "postgres"))

	_, err := GetConfigFromContext(ctx)
	require.Error(t, err)
}

func TestHandleLoggingParamsDebugForcesDebugLevel(t *testing.T) {
	set := flag.NewFlagSet("flagSet", flag.ContinueOnError)
	set.Bool(Debug.Name, false, "")
	ctx := cli.NewContext(cli.NewApp(), set, nil)
	require.NoError(t, set.Set(Debug.Name, "true"))

	log, level, err := HandleLoggingParams(ctx, config.Logger{})
	require.NoError(t, err)
	require.NotNil(t, log)
	require.Equal(t, -1, int(level.Level())) // zapcore.DebugLevel == -1
}
