package config

import "testing"

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("RPC_URL", "http://localhost:8545")
	t.Setenv("CURVE_ADDRESS", "0x1111111111111111111111111111111111111111")
	t.Setenv("OPERATOR_PRIVATE_KEY", "abc123")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)
	t.Setenv("LISTEN_ADDR", "")
	t.Setenv("CHAIN_ID", "")
	t.Setenv("TOPUP_AMOUNT_USDT", "")
	t.Setenv("DATABASE_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":8080" {
		t.Fatalf("listen addr got=%q want=:8080", cfg.ListenAddr)
	}
	if cfg.ChainID != 1 {
		t.Fatalf("chain id got=%d want=1", cfg.ChainID)
	}
	if cfg.TopUpAmountUSDT != 0.05 {
		t.Fatalf("top-up amount got=%v want=0.05", cfg.TopUpAmountUSDT)
	}
	if cfg.DatabaseURL != "" {
		t.Fatalf("database url got=%q want empty", cfg.DatabaseURL)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("LISTEN_ADDR", ":9999")
	t.Setenv("CHAIN_ID", "1337")
	t.Setenv("TOPUP_AMOUNT_USDT", "0.5")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":9999" || cfg.ChainID != 1337 || cfg.TopUpAmountUSDT != 0.5 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
}

func TestLoadRequiresChainSettings(t *testing.T) {
	cases := []string{"RPC_URL", "CURVE_ADDRESS", "OPERATOR_PRIVATE_KEY"}
	for _, missing := range cases {
		t.Run(missing, func(t *testing.T) {
			setRequired(t)
			t.Setenv(missing, "")
			if _, err := Load(); err == nil {
				t.Fatalf("err got=nil want missing %s", missing)
			}
		})
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	setRequired(t)
	t.Setenv("CHAIN_ID", "not-a-number")
	t.Setenv("TOPUP_AMOUNT_USDT", "garbage")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ChainID != 1 || cfg.TopUpAmountUSDT != 0.05 {
		t.Fatalf("malformed values did not fall back: %+v", cfg)
	}
}
