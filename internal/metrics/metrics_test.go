package metrics

import (
	"database/sql"
	"testing"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/ff-rewards/internal/domain"
)

func TestObserveClaim(t *testing.T) {
	beforeOK := testutil.ToFloat64(ClaimsTotal.WithLabelValues(SourceFaucet, "ok"))
	beforeCooldown := testutil.ToFloat64(ClaimsTotal.WithLabelValues(SourceFaucet, "not_eligible"))

	ObserveClaim(SourceFaucet, nil, time.Now())
	ObserveClaim(SourceFaucet, domain.NewCooldownError(5), time.Now())

	assert.Equal(t, beforeOK+1, testutil.ToFloat64(ClaimsTotal.WithLabelValues(SourceFaucet, "ok")))
	assert.Equal(t, beforeCooldown+1, testutil.ToFloat64(ClaimsTotal.WithLabelValues(SourceFaucet, "not_eligible")))
}

func TestObserveLedgerEntry(t *testing.T) {
	before := testutil.ToFloat64(LedgerEntriesTotal.WithLabelValues("deposit"))
	ObserveLedgerEntry(domain.TransactionKindDeposit)
	assert.Equal(t, before+1, testutil.ToFloat64(LedgerEntriesTotal.WithLabelValues("deposit")))
}

func TestObserveHTTPRequest(t *testing.T) {
	route := "/api/v1/users/:user_id/faucets/:faucet_id/claims"
	before := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(route, "POST", "201"))
	beforeUnmatched := testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("unmatched", "GET", "404"))

	ObserveHTTPRequest(route, "POST", 201, 10*time.Millisecond)
	ObserveHTTPRequest("", "GET", 404, time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues(route, "POST", "201")))
	assert.Equal(t, beforeUnmatched+1, testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("unmatched", "GET", "404")))
}

func TestRegisterDBStats(t *testing.T) {
	// sql.Open does not connect, so no database is needed
	db, err := sql.Open("pgx", "postgres://rewards@localhost:1/rewards")
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, RegisterDBStats(db, "metrics_test"))
	require.NoError(t, RegisterDBStats(db, "metrics_test"))

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	found := false
	for _, family := range families {
		if family.GetName() == "go_sql_max_open_connections" {
			found = true
		}
	}
	assert.True(t, found)
}
