package approval

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/stagehand-dev/stagehand/internal/record"
)

// Bundle file names inside an approval's artifact directory.
const (
	BundleFile      = "publish-bundle.md"
	FinalBundleFile = "publish-bundle.final.md"
	manifestFile    = "run-manifest.json"
)

// ReleaseResult reports the outcome of releasing a publish bundle.
type ReleaseResult struct {
	OK          bool   `json:"ok"`
	Skipped     bool   `json:"skipped,omitempty"`
	Reason      string `json:"reason,omitempty"`
	FinalBundle string `json:"finalBundle,omitempty"`
	Error       string `json:"error,omitempty"`
}

// PatternOutcome reports the post-release sanitizer pass.
type PatternOutcome struct {
	OK      bool   `json:"ok"`
	Skipped bool   `json:"skipped,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Output  any    `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ReleaseBundle copies publish-bundle.md to publish-bundle.final.md inside
// the approval's artifact directory. Re-approving overwrites the final
// bundle with the same content, so release is idempotent. A missing
// artifact path or bundle is a recorded skip, not an error.
func ReleaseBundle(a *record.Approval) ReleaseResult {
	if a.ArtifactPath == "" {
		return ReleaseResult{Skipped: true, Reason: "missing artifact_path"}
	}
	bundle := filepath.Join(a.ArtifactPath, BundleFile)
	body, err := os.ReadFile(bundle)
	if os.IsNotExist(err) {
		return ReleaseResult{Skipped: true, Reason: "publish-bundle missing"}
	}
	if err != nil {
		return ReleaseResult{Error: err.Error()}
	}

	final := filepath.Join(a.ArtifactPath, FinalBundleFile)
	if err := os.WriteFile(final, body, 0o644); err != nil {
		return ReleaseResult{Error: err.Error()}
	}
	return ReleaseResult{OK: true, FinalBundle: final}
}

// resolveCadence reads the cadence from the artifact's run manifest,
// defaulting to daily.
func resolveCadence(artifactPath string) string {
	body, err := os.ReadFile(filepath.Join(artifactPath, manifestFile))
	if err != nil {
		return "daily"
	}
	var manifest struct {
		Cadence string `json:"cadence"`
	}
	if err := json.Unmarshal(body, &manifest); err != nil || manifest.Cadence == "" {
		return "daily"
	}
	return manifest.Cadence
}
