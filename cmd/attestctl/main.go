package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/merklebase/attestd/pkg/client"
	"github.com/merklebase/attestd/pkg/merkle"
)

// version is overridden by goreleaser via -ldflags "-X main.version=...".
var version = "dev"

var (
	serverURL   string
	bearerToken string
	cfgFile     string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "attestctl",
	Short: "attestd command-line interface",
	Long: `attestctl is the command-line interface for attestd.

It submits attestations, lists and revokes records, and verifies Merkle
inclusion proofs offline without contacting a server.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if cfgFile != "" {
			viper.SetConfigFile(cfgFile)
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(home + "/.attestctl")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
		viper.AutomaticEnv()
		_ = viper.ReadInConfig()

		if serverURL == "" {
			serverURL = viper.GetString("server_url")
		}
		if serverURL == "" {
			serverURL = "http://localhost:8080"
		}
		if bearerToken == "" {
			bearerToken = viper.GetString("token")
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.attestctl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "attestd server URL (default http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&bearerToken, "token", "", "business bearer token")

	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(revokeCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(rootOfCmd)
	rootCmd.AddCommand(versionCmd)
}

func newClient() *client.Client {
	opts := []client.Option{}
	if bearerToken != "" {
		opts = append(opts, client.WithBearerToken(bearerToken))
	}
	return client.New(serverURL, opts...)
}

// ── submit ────────────────────────────────────────────────────────────────────

var (
	submitPeriod     string
	submitRoot       string
	submitLeavesFile string
	submitVersion    string
	submitIdemKey    string
)

var submitCmd = &cobra.Command{
	Use:   "submit [leaf ...]",
	Short: "Submit a new attestation",
	Long: `Submit commits a batch of leaves (or a precomputed Merkle root) for a
period. Leaves are given as arguments or, with --leaves-file, one per line:

  attestctl submit --period 2026-01 "invoice:001" "invoice:002"
  attestctl submit --period 2026-01 --root 9a1f...
  attestctl submit --period 2026-01 --leaves-file batch.txt --idempotency-key batch-2026-01`,
	RunE: runSubmit,
}

func init() {
	submitCmd.Flags().StringVar(&submitPeriod, "period", "", "attested period, e.g. 2026-01 (required)")
	submitCmd.Flags().StringVar(&submitRoot, "root", "", "precomputed Merkle root (alternative to leaves)")
	submitCmd.Flags().StringVar(&submitLeavesFile, "leaves-file", "", "file with one leaf per line")
	submitCmd.Flags().StringVar(&submitVersion, "version", "", "attestation schema version")
	submitCmd.Flags().StringVar(&submitIdemKey, "idempotency-key", "", "idempotency key; retries with the same key replay the original record")
	_ = submitCmd.MarkFlagRequired("period")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	leaves := args
	if submitLeavesFile != "" {
		data, err := os.ReadFile(submitLeavesFile)
		if err != nil {
			return fmt.Errorf("read leaves file: %w", err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				leaves = append(leaves, line)
			}
		}
	}
	if len(leaves) == 0 && submitRoot == "" {
		return fmt.Errorf("provide leaves or --root")
	}

	rec, err := newClient().Submit(context.Background(), client.SubmitRequest{
		Period:     submitPeriod,
		MerkleRoot: submitRoot,
		Leaves:     leaves,
		Version:    submitVersion,
	}, submitIdemKey)
	if err != nil {
		return err
	}

	fmt.Printf("Attestation submitted\n")
	fmt.Printf("  ID:          %s\n", rec.ID)
	fmt.Printf("  Merkle root: %s\n", rec.MerkleRoot)
	fmt.Printf("  Leaf count:  %d\n", rec.LeafCount)
	fmt.Printf("  Tx hash:     %s\n", rec.TxHash)
	if strings.HasPrefix(rec.TxHash, "pending_") {
		fmt.Println("  Note: anchoring is pending; the tx hash will be updated once the ledger accepts the root.")
	}
	return nil
}

// ── list ──────────────────────────────────────────────────────────────────────

var (
	listPeriod string
	listStatus string
	listPage   int
	listLimit  int
	listFormat string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List attestations for your business",
	RunE:  runList,
}

func init() {
	listCmd.Flags().StringVar(&listPeriod, "period", "", "filter by period")
	listCmd.Flags().StringVar(&listStatus, "status", "", "filter by status (submitted, revoked)")
	listCmd.Flags().IntVar(&listPage, "page", 1, "page number (1-indexed)")
	listCmd.Flags().IntVar(&listLimit, "limit", 20, "records per page")
	listCmd.Flags().StringVar(&listFormat, "format", "text", "output format: text or json")
}

func runList(cmd *cobra.Command, args []string) error {
	result, err := newClient().List(context.Background(), client.ListOptions{
		Period: listPeriod,
		Status: listStatus,
		Page:   listPage,
		Limit:  listLimit,
	})
	if err != nil {
		return err
	}

	if listFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPERIOD\tSTATUS\tLEAVES\tATTESTED AT\tTX HASH")
	for _, rec := range result.Items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			rec.ID, rec.Period, rec.Status, rec.LeafCount,
			rec.AttestedAt.Format(time.RFC3339), rec.TxHash,
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nPage %d of %d (%d total)\n", result.Page, result.TotalPages, result.Total)
	return nil
}

// ── get ───────────────────────────────────────────────────────────────────────

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show a single attestation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := newClient().Get(context.Background(), args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rec)
	},
}

// ── revoke ────────────────────────────────────────────────────────────────────

var revokeReason string

var revokeCmd = &cobra.Command{
	Use:   "revoke <id>",
	Short: "Revoke an attestation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rec, err := newClient().Revoke(context.Background(), args[0], revokeReason)
		if err != nil {
			return err
		}
		fmt.Printf("Attestation %s revoked", rec.ID)
		if rec.RevokedAt != nil {
			fmt.Printf(" at %s", rec.RevokedAt.Format(time.RFC3339))
		}
		fmt.Println()
		return nil
	},
}

func init() {
	revokeCmd.Flags().StringVar(&revokeReason, "reason", "", "revocation reason")
}

// ── verify ────────────────────────────────────────────────────────────────────

var (
	verifyLeaf      string
	verifyRoot      string
	verifyIndex     int
	verifyProofFile string
	verifyRemote    bool
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify a Merkle inclusion proof",
	Long: `Verify checks that a leaf is included under a committed root.

The check runs locally by default; --remote asks the server instead. The
proof file holds the JSON proof array as returned when the batch was built:

  attestctl verify --leaf "invoice:002" --root 9a1f... --index 1 --proof proof.json`,
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringVar(&verifyLeaf, "leaf", "", "leaf value (required)")
	verifyCmd.Flags().StringVar(&verifyRoot, "root", "", "Merkle root to verify against (required)")
	verifyCmd.Flags().IntVar(&verifyIndex, "index", 0, "leaf index in the committed batch")
	verifyCmd.Flags().StringVar(&verifyProofFile, "proof", "", "JSON proof file (required)")
	verifyCmd.Flags().BoolVar(&verifyRemote, "remote", false, "verify via the server instead of locally")
	_ = verifyCmd.MarkFlagRequired("leaf")
	_ = verifyCmd.MarkFlagRequired("root")
	_ = verifyCmd.MarkFlagRequired("proof")
}

func runVerify(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(verifyProofFile)
	if err != nil {
		return fmt.Errorf("read proof file: %w", err)
	}
	var proof merkle.Proof
	if err := json.Unmarshal(data, &proof); err != nil {
		return fmt.Errorf("parse proof: %w", err)
	}

	var valid bool
	if verifyRemote {
		valid, err = newClient().VerifyRemote(context.Background(), verifyLeaf, proof, verifyRoot, verifyIndex)
		if err != nil {
			return err
		}
	} else {
		valid = client.Verify(verifyLeaf, proof, verifyRoot, verifyIndex)
	}

	if !valid {
		fmt.Println("INVALID: the proof does not place this leaf under the given root")
		os.Exit(1)
	}
	fmt.Println("VALID: leaf is included under the root")
	return nil
}

// ── root ──────────────────────────────────────────────────────────────────────

var rootLeavesFile string

var rootOfCmd = &cobra.Command{
	Use:   "root [leaf ...]",
	Short: "Compute the Merkle root of a leaf batch locally",
	Long: `Root builds the Merkle tree over the given leaves and prints the root
and one inclusion proof per leaf. Useful for precomputing --root for submit
and distributing proofs to leaf holders.`,
	RunE: runRoot,
}

func init() {
	rootOfCmd.Flags().StringVar(&rootLeavesFile, "leaves-file", "", "file with one leaf per line")
}

func runRoot(cmd *cobra.Command, args []string) error {
	leaves := args
	if rootLeavesFile != "" {
		data, err := os.ReadFile(rootLeavesFile)
		if err != nil {
			return fmt.Errorf("read leaves file: %w", err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			if line = strings.TrimSpace(line); line != "" {
				leaves = append(leaves, line)
			}
		}
	}
	if len(leaves) == 0 {
		return fmt.Errorf("provide at least one leaf")
	}

	raw := make([][]byte, len(leaves))
	for i, l := range leaves {
		raw[i] = []byte(l)
	}
	tree, err := merkle.New(raw)
	if err != nil {
		return err
	}

	type leafProof struct {
		Index int          `json:"index"`
		Leaf  string       `json:"leaf"`
		Proof merkle.Proof `json:"proof"`
	}
	out := struct {
		Root   string      `json:"root"`
		Leaves []leafProof `json:"leaves"`
	}{Root: tree.Root()}

	for i, l := range leaves {
		proof, err := tree.Proof(i)
		if err != nil {
			return err
		}
		out.Leaves = append(out.Leaves, leafProof{Index: i, Leaf: l, Proof: proof})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// ── version ───────────────────────────────────────────────────────────────────

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the attestctl version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("attestctl", version)
	},
}
