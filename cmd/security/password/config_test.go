package password

import (
	"os"
	"testing"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{
		"FANSITE_PASSWORD_MIN_LEN",
		"FANSITE_PASSWORD_MAX_LEN",
		"FANSITE_PASSWORD_REQUIRE_DIGIT",
		"FANSITE_PASSWORD_REQUIRE_LOWER",
		"FANSITE_PASSWORD_REQUIRE_UPPER",
		"FANSITE_PASSWORD_REJECT_VERY_WEAK",
		"FANSITE_ARGON2_MEMORY_KIB",
		"FANSITE_ARGON2_ITERATIONS",
		"FANSITE_ARGON2_PARALLELISM",
		"FANSITE_ARGON2_SALT_LEN",
		"FANSITE_ARGON2_KEY_LEN",
	} {
		_ = os.Unsetenv(k)
	}

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}
	if cfg != DefaultConfig() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
	if cfg.Policy.MinLength != 8 || !cfg.Policy.RequireDigit || !cfg.Policy.RequireUpper {
		t.Fatalf("unexpected default policy: %+v", cfg.Policy)
	}
}

func TestFromEnv_Override(t *testing.T) {
	t.Setenv("FANSITE_PASSWORD_MIN_LEN", "10")
	t.Setenv("FANSITE_PASSWORD_MAX_LEN", "200")
	t.Setenv("FANSITE_PASSWORD_REQUIRE_UPPER", "false")
	t.Setenv("FANSITE_PASSWORD_REJECT_VERY_WEAK", "true")
	t.Setenv("FANSITE_ARGON2_MEMORY_KIB", "32768")
	t.Setenv("FANSITE_ARGON2_ITERATIONS", "4")
	t.Setenv("FANSITE_ARGON2_PARALLELISM", "2")
	t.Setenv("FANSITE_ARGON2_SALT_LEN", "24")
	t.Setenv("FANSITE_ARGON2_KEY_LEN", "32")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}

	if cfg.Policy.MinLength != 10 || cfg.Policy.MaxLength != 200 || !cfg.Policy.RejectVeryWeak || cfg.Policy.RequireUpper {
		t.Fatalf("policy override failed: %+v", cfg.Policy)
	}
	if cfg.Params.MemoryKiB != 32768 || cfg.Params.Iterations != 4 || cfg.Params.Parallelism != 2 {
		t.Fatalf("argon2 override failed: %+v", cfg.Params)
	}
	if cfg.Params.SaltLength != 24 || cfg.Params.KeyLength != 32 {
		t.Fatalf("len override failed: %+v", cfg.Params)
	}
}

func TestFromEnv_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"min above max":  {"FANSITE_PASSWORD_MIN_LEN": "20", "FANSITE_PASSWORD_MAX_LEN": "10"},
		"bad bool":       {"FANSITE_PASSWORD_REQUIRE_DIGIT": "maybe"},
		"memory too low": {"FANSITE_ARGON2_MEMORY_KIB": "1024"},
		"not a number":   {"FANSITE_ARGON2_ITERATIONS": "three"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := FromEnv(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
