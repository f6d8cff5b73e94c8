package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"k8s.io/client-go/util/homedir"

	"github.com/helmcode/errfriendly/pkg/exception"
	"github.com/helmcode/errfriendly/pkg/k8s"
)

var (
	kubeconfig  string
	kubeContext string
	namespace   string
	container   string
	previous    bool
	tailLines   int64
)

func NewPodCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pod RESOURCE",
		Short: "Explain the tracebacks of crashed Kubernetes containers",
		Long: `Fetch the logs of the pods behind RESOURCE and explain the last traceback of each
container. Crashed containers are read from their previous run.

Examples:
  # Explain why a deployment's pods are crash looping
  errfriendly pod deployment/api -n production

  # A single pod and container
  errfriendly pod pod/worker-7d9f -c worker

  # Use a different kubeconfig context
  errfriendly pod deployment/api --context staging --backend openai`,
		Args: cobra.ExactArgs(1),
		RunE: runPod,
	}

	// Flags
	if home := homedir.HomeDir(); home != "" {
		cmd.Flags().StringVar(&kubeconfig, "kubeconfig", filepath.Join(home, ".kube", "config"), "Path to kubeconfig file")
	} else {
		cmd.Flags().StringVar(&kubeconfig, "kubeconfig", "", "Path to kubeconfig file")
	}
	cmd.Flags().StringVar(&kubeContext, "context", "", "Kubeconfig context (overrides current-context)")
	cmd.Flags().StringVarP(&namespace, "namespace", "n", "default", "Kubernetes namespace")
	cmd.Flags().StringVar(&container, "container", "", "Only read this container")
	cmd.Flags().BoolVar(&previous, "previous", false, "Always read the previous run's log")
	cmd.Flags().Int64Var(&tailLines, "tail", 500, "Number of log lines to read per container")

	return cmd
}

func runPod(cmd *cobra.Command, args []string) error {
	resource := args[0]
	ctx := cmd.Context()

	store, err := loadStore(cmd)
	if err != nil {
		return err
	}
	printHeader(resource)

	// Create spinner for visual feedback
	s := newSpinner(" Connecting to Kubernetes cluster...")
	s.Start()

	// Initialize K8s client
	k8sClient, err := k8s.NewClient(kubeconfig, kubeContext)
	if err != nil {
		s.Stop()
		return fmt.Errorf("failed to connect to cluster: %w", err)
	}
	pods, err := k8sClient.ResolvePods(ctx, namespace, resource)
	s.Stop()
	if err != nil {
		return err
	}
	printSuccess(fmt.Sprintf("Found %d pod(s)", len(pods)))

	p := newPipeline(store, nil)
	explained := 0
	for i := range pods {
		pod := &pods[i]
		for _, ct := range k8s.Containers(pod) {
			if container != "" && ct.Name != container {
				continue
			}
			logs, err := k8sClient.PodLogs(ctx, namespace, ct.Pod, ct.Name, previous || ct.Crashed, tailLines)
			if err != nil {
				printWarning(err.Error())
				continue
			}
			recs := exception.ParseTracebacks(logs)
			if len(recs) == 0 {
				continue
			}
			printSuccess(fmt.Sprintf("Traceback found in %s/%s (restarts: %d)", ct.Pod, ct.Name, ct.Restarts))
			last := []exception.Exception{recs[len(recs)-1]}
			if err := explainAndDisplay(ctx, cmd.OutOrStdout(), store, p, last); err != nil {
				return err
			}
			explained++
		}
	}
	if explained == 0 {
		printWarning("No traceback found in the selected containers")
	}
	return nil
}

func printHeader(resource string) {
	cyan := color.New(color.FgCyan, color.Bold)
	fmt.Fprintln(os.Stderr)
	cyan.Fprintln(os.Stderr, "🔍 errfriendly pod inspector")
	fmt.Fprintf(os.Stderr, "📍 Namespace: %s\n", namespace)
	fmt.Fprintf(os.Stderr, "📊 Resource: %s\n", strings.TrimSpace(resource))
	fmt.Fprintln(os.Stderr)
}
