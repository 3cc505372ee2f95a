// Command shotctl is an operator CLI for a running screenshotd instance:
// pool introspection, manual force-recycle, and batch job submission from a
// YAML template, all driven through the admin HTTP surface.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "shotctl:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return usageError()
	}

	fs := flag.NewFlagSet("shotctl", flag.ContinueOnError)
	addr := fs.String("addr", "http://localhost:8080", "screenshotd admin address")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	client := &http.Client{Timeout: 30 * time.Second}

	switch args[0] {
	case "pool-stats":
		return poolStats(client, *addr)
	case "force-recycle":
		n := 1
		if fs.NArg() > 0 {
			fmt.Sscanf(fs.Arg(0), "%d", &n)
		}
		return forceRecycle(client, *addr, n)
	case "metrics":
		return getMetrics(client, *addr)
	case "submit":
		if fs.NArg() == 0 {
			return fmt.Errorf("submit requires a YAML job template path")
		}
		return submitJob(client, *addr, fs.Arg(0))
	case "get-job":
		if fs.NArg() == 0 {
			return fmt.Errorf("get-job requires a job id")
		}
		return getJob(client, *addr, fs.Arg(0))
	case "cancel-job":
		if fs.NArg() == 0 {
			return fmt.Errorf("cancel-job requires a job id")
		}
		return cancelJob(client, *addr, fs.Arg(0))
	default:
		return usageError()
	}
}

func usageError() error {
	fmt.Fprintln(os.Stderr, `usage: shotctl <command> [-addr URL] [args]

commands:
  pool-stats              print browser pool utilization
  force-recycle [n]       recycle up to n browsers, in-use ones first (default 1)
  metrics                 print the full metrics snapshot
  submit <job.yaml>       submit a batch job from a YAML template
  get-job <id>            fetch a batch job by id
  cancel-job <id>         cancel a batch job by id`)
	return flag.ErrHelp
}

func poolStats(client *http.Client, addr string) error {
	return getAndPrint(client, addr+"/pool_stats")
}

func getMetrics(client *http.Client, addr string) error {
	return getAndPrint(client, addr+"/get_metrics")
}

func getJob(client *http.Client, addr, jobID string) error {
	return getAndPrint(client, addr+"/get_job?job_id="+jobID)
}

func forceRecycle(client *http.Client, addr string, n int) error {
	body, _ := json.Marshal(map[string]int{"count": n})
	return postAndPrint(client, addr+"/force_recycle", body)
}

func cancelJob(client *http.Client, addr, jobID string) error {
	return postAndPrint(client, addr+"/cancel_job?job_id="+jobID, nil)
}

// batchTemplate is the YAML shape an operator hand-writes for a batch job;
// it mirrors batch.ItemRequest/batch.JobConfig's JSON fields without
// importing internal/batch, since shotctl only ever forwards it as JSON.
type batchTemplate struct {
	Items []struct {
		URL      string `yaml:"url" json:"url"`
		Width    int    `yaml:"width" json:"width"`
		Height   int    `yaml:"height" json:"height"`
		Format   string `yaml:"format" json:"format"`
		UseCache bool   `yaml:"use_cache" json:"UseCache"`
	} `yaml:"items" json:"items"`
	Job struct {
		Parallel       int    `yaml:"parallel" json:"parallel"`
		TimeoutSeconds int    `yaml:"timeout_seconds" json:"TimeoutSeconds"`
		FailFast       bool   `yaml:"fail_fast" json:"FailFast"`
		UseCache       bool   `yaml:"use_cache" json:"UseCache"`
		Priority       string `yaml:"priority" json:"priority"`
		UserID         string `yaml:"user_id" json:"UserID"`
	} `yaml:"job" json:"job"`
}

func submitJob(client *http.Client, addr, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read template: %w", err)
	}
	var tmpl batchTemplate
	if err := yaml.Unmarshal(raw, &tmpl); err != nil {
		return fmt.Errorf("parse template: %w", err)
	}
	body, err := json.Marshal(tmpl)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return postAndPrint(client, addr+"/submit_batch", body)
}

func getAndPrint(client *http.Client, url string) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return printResponse(resp)
}

func postAndPrint(client *http.Client, url string, body []byte) error {
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return printResponse(resp)
}

func printResponse(resp *http.Response) error {
	var v any
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	pretty, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(pretty))
	if resp.StatusCode >= 400 {
		return fmt.Errorf("screenshotd returned %s", resp.Status)
	}
	return nil
}
