package messaging

import "testing"

func TestTopicHelpersMatchWireFormat(t *testing.T) {
	cases := []struct {
		got, want string
	}{
		{TopicTelemetry("site-1"), "lifo4/site-1/telemetry"},
		{TopicDecisions("site-1"), "lifo4/site-1/decisions"},
		{TopicAlarms("site-1"), "lifo4/site-1/alarms"},
		{TopicHeartbeat("site-1"), "lifo4/site-1/heartbeat"},
		{TopicCommands("site-1"), "lifo4/site-1/commands"},
		{TopicConfig("site-1"), "lifo4/site-1/config"},
		{TopicOTAUpdate("site-1"), "lifo4/site-1/ota/update"},
		{TopicOTAStatus("site-1"), "lifo4/site-1/ota/status"},
		{TopicProvisioningConfig("edge-abc123"), "lifo4/provisioning/edge-abc123/config"},
	}
	for _, c := range cases {
		if c.got != c.want {
			t.Errorf("got %q, want %q", c.got, c.want)
		}
	}
}

func TestBuildTLSConfigNilWhenNoClientCert(t *testing.T) {
	tlsCfg, err := buildTLSConfig(Config{})
	if err != nil {
		t.Fatalf("buildTLSConfig() error: %v", err)
	}
	if tlsCfg != nil {
		t.Errorf("buildTLSConfig() = %+v, want nil for unencrypted development config", tlsCfg)
	}
}

func TestBuildTLSConfigErrorsOnMissingCertFile(t *testing.T) {
	_, err := buildTLSConfig(Config{ClientCertFile: "/nonexistent/client.crt", ClientKeyFile: "/nonexistent/client.key"})
	if err == nil {
		t.Errorf("buildTLSConfig() error = nil, want error for missing cert file")
	}
}
