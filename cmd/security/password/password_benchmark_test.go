package password

import "testing"

// benchConfigs compares the production cost with the cheap test settings.
func benchConfigs() map[string]Config {
	cheap := DefaultConfig()
	cheap.Params.MemoryKiB = 8 * 1024
	cheap.Params.Iterations = 1
	cheap.Params.Parallelism = 1
	return map[string]Config{
		"default": DefaultConfig(),
		"cheap":   cheap,
	}
}

func BenchmarkHash(b *testing.B) {
	for name, cfg := range benchConfigs() {
		b.Run(name, func(b *testing.B) {
			for b.Loop() {
				if _, err := cfg.Hash("Pw123456-benchmark"); err != nil {
					b.Fatalf("Hash error: %v", err)
				}
			}
		})
	}
}

func BenchmarkVerify(b *testing.B) {
	for name, cfg := range benchConfigs() {
		b.Run(name, func(b *testing.B) {
			h, err := cfg.Hash("Pw123456-benchmark")
			if err != nil {
				b.Fatalf("Hash error: %v", err)
			}
			for b.Loop() {
				ok, err := cfg.Verify(h, "Pw123456-benchmark")
				if err != nil || !ok {
					b.Fatalf("Verify failed: ok=%v err=%v", ok, err)
				}
			}
		})
	}
}

// BenchmarkDecoy measures the unknown-email path, which must cost about the
// same as Verify.
func BenchmarkDecoy(b *testing.B) {
	cfg := DefaultConfig()
	decoy, err := cfg.Decoy()
	if err != nil {
		b.Fatalf("Decoy error: %v", err)
	}
	for b.Loop() {
		_, _ = cfg.Verify(decoy, "Pw123456-benchmark")
	}
}
