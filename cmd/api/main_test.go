package main

import "testing"

func TestMetricsPath(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/v1/solve", "/v1/solve"},
		{"/v1/solves", "/v1/solves"},
		{"/v1/solves/6f1b2c3d-0000-0000-0000-000000000000", "/v1/solves/{id}"},
		{"/v1/solves/6f1b2c3d-0000-0000-0000-000000000000/events/stream", "/v1/solves/{id}/events/stream"},
		{"/v1/datasets", "/v1/datasets"},
		{"/v1/datasets/c101", "/v1/datasets/{name}"},
		{"/v1/subscriptions/sub_42", "/v1/subscriptions/{id}"},
		{"/healthz", "/healthz"},
		{"/metrics", "/metrics"},
		{"/favicon.ico", "other"},
		{"/v1/unknown", "other"},
	}
	for _, tc := range cases {
		if got := metricsPath(tc.path); got != tc.want {
			t.Errorf("metricsPath(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}
