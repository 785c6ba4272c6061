package security_test

import (
	"testing"

	"github.com/campusfound/board-service/internal/security"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestParseMetricsLabels(t *testing.T) {
	labels, err := security.ParseMetricsLabels("service=board-service,env=dev")
	require.NoError(t, err)
	require.Equal(t, prometheus.Labels{"service": "board-service", "env": "dev"}, labels)
}

func TestParseMetricsLabels_Empty(t *testing.T) {
	labels, err := security.ParseMetricsLabels("")
	require.NoError(t, err)
	require.Nil(t, labels)
}

func TestParseMetricsLabels_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_POD_NAME", "board-0")
	labels, err := security.ParseMetricsLabels("pod=${TEST_POD_NAME}")
	require.NoError(t, err)
	require.Equal(t, prometheus.Labels{"pod": "board-0"}, labels)
}

func TestParseMetricsLabels_Invalid(t *testing.T) {
	_, err := security.ParseMetricsLabels("not-a-pair")
	require.Error(t, err)

	_, err = security.ParseMetricsLabels("9bad=value")
	require.Error(t, err)
}
