package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/cwbudde/holefill/internal/server"
	"github.com/cwbudde/holefill/internal/store"
)

var (
	serverURL  string
	submitFlag solverFlags
)

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Query server status or specific job",
	Long: `Queries the server for job status information.
If no job-id is provided, lists all jobs.
If job-id is provided, shows detailed status for that job.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

var submitCmd = &cobra.Command{
	Use:   "submit <image> <mask>",
	Short: "Submit a fill job to a running server",
	Long: `Submits a fill job to the server. Paths are resolved by the server, so
they must be valid on the server's filesystem. Prints the new job ID.`,
	Args: cobra.ExactArgs(2),
	RunE: runSubmit,
}

func init() {
	statusCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	submitCmd.Flags().StringVar(&serverURL, "server", "http://localhost:8080", "Server URL")
	submitFlag.register(submitCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(submitCmd)
}

// jobStatus is the body of GET /api/v1/jobs/{id}. Record is set instead of
// the progress fields for jobs answered from the result store.
type jobStatus struct {
	server.Job
	ElapsedSeconds float64       `json:"elapsed"`
	Record         *store.Record `json:"record,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return listJobs(cmd.OutOrStdout(), serverURL+"/api/v1/jobs")
	}
	jobID := args[0]
	return getJobStatus(cmd.OutOrStdout(), fmt.Sprintf("%s/api/v1/jobs/%s", serverURL, jobID), jobID)
}

// getJSON fetches url and decodes a 200 response into v.
func getJSON(url string, v any) (int, error) {
	resp, err := http.Get(url)
	if err != nil {
		return 0, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("server returned error: %s", bytes.TrimSpace(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, nil
}

func listJobs(w io.Writer, url string) error {
	var jobs []server.Job
	if _, err := getJSON(url, &jobs); err != nil {
		return err
	}

	if len(jobs) == 0 {
		fmt.Fprintln(w, "No jobs found")
		return nil
	}

	fmt.Fprintf(w, "Found %d job(s):\n\n", len(jobs))
	for _, job := range jobs {
		fmt.Fprintf(w, "Job ID: %s\n", job.ID)
		fmt.Fprintf(w, "  State: %s\n", job.State)
		fmt.Fprintf(w, "  Image: %s\n", job.Config.ImagePath)
		if job.Steps > 0 {
			fmt.Fprintf(w, "  Level: %d/%d (%dx%d), mean cost %.1f\n", job.Step+1, job.Steps, job.Width, job.Height, job.MeanCost)
		}
		fmt.Fprintln(w)
	}

	return nil
}

func getJobStatus(w io.Writer, url, jobID string) error {
	var status jobStatus
	code, err := getJSON(url, &status)
	if code == http.StatusNotFound {
		return fmt.Errorf("job not found: %s", jobID)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Job: %s\n", status.ID)
	fmt.Fprintf(w, "State: %s\n", status.State)
	fmt.Fprintln(w)

	if r := status.Record; r != nil {
		fmt.Fprintln(w, "Stored result:")
		fmt.Fprintf(w, "  Image: %s\n", r.Config.ImagePath)
		fmt.Fprintf(w, "  Size: %dx%d, patch %d\n", r.Width, r.Height, r.PatchSize)
		fmt.Fprintf(w, "  Filled: %d pixels, %d without a match\n", r.Stats.Fillable, r.Stats.Unknown)
		fmt.Fprintf(w, "  Mean Cost: %.1f\n", r.Stats.MeanCost)
		fmt.Fprintf(w, "  Elapsed: %s\n", seconds(r.Elapsed))
		return nil
	}

	fmt.Fprintln(w, "Configuration:")
	fmt.Fprintf(w, "  Image: %s\n", status.Config.ImagePath)
	fmt.Fprintf(w, "  Mask: %s\n", status.Config.MaskPath)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Progress:")
	if status.Steps > 0 {
		fmt.Fprintf(w, "  Level: %d/%d (%dx%d)\n", status.Step+1, status.Steps, status.Width, status.Height)
		fmt.Fprintf(w, "  Iteration: %d\n", status.Iteration)
		fmt.Fprintf(w, "  Mean Cost: %.1f\n", status.MeanCost)
		if status.Unknown > 0 {
			fmt.Fprintf(w, "  Unmatched: %d\n", status.Unknown)
		}
	}
	fmt.Fprintf(w, "  Elapsed: %s\n", seconds(status.ElapsedSeconds))

	if status.Error != "" {
		fmt.Fprintf(w, "\nError: %s\n", status.Error)
	}

	return nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second)).Round(time.Millisecond)
}

func runSubmit(cmd *cobra.Command, args []string) error {
	job, err := submitJob(serverURL, submitFlag.jobConfig(args[0], args[1]))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), job.ID)
	return nil
}

// submitJob posts cfg to the server and returns the created job.
func submitJob(baseURL string, cfg store.JobConfig) (*server.Job, error) {
	body, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(baseURL+"/api/v1/jobs", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server rejected job: %s", bytes.TrimSpace(msg))
	}
	var job server.Job
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &job, nil
}
