package clickhouse

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRewards_ClickHouse_ClientConfig_Options(t *testing.T) {
	t.Parallel()

	t.Run("defaults the database", func(t *testing.T) {
		t.Parallel()
		opts := ClientConfig{Addr: "localhost:9000", Username: "default"}.options()
		require.Equal(t, []string{"localhost:9000"}, opts.Addr)
		require.Equal(t, DefaultDatabase, opts.Auth.Database)
		require.Equal(t, defaultDialTimeout, opts.DialTimeout)
		require.Nil(t, opts.TLS)
	})

	t.Run("secure enables tls", func(t *testing.T) {
		t.Parallel()
		opts := ClientConfig{Addr: "example.clickhouse.cloud:9440", Database: "rewards", Secure: true}.options()
		require.Equal(t, "rewards", opts.Auth.Database)
		require.NotNil(t, opts.TLS)
	})
}
