package k8s

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// maxLogBytes bounds how much of a container log is read.
const maxLogBytes = 4 << 20

type Client struct {
	clientset kubernetes.Interface
}

// NewClient creates a new Kubernetes client. kubeContext selects a context
// from the kubeconfig; empty means the current one.
func NewClient(kubeconfig, kubeContext string) (*Client, error) {
	var config *rest.Config
	var err error

	// Try in-cluster config first
	config, err = rest.InClusterConfig()
	if err != nil || kubeContext != "" {
		// Fall back to kubeconfig
		rules := &clientcmd.ClientConfigLoadingRules{ExplicitPath: kubeconfig}
		overrides := &clientcmd.ConfigOverrides{CurrentContext: kubeContext}
		config, err = clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, overrides).ClientConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to create config: %w", err)
		}
	}

	// Create clientset
	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}
	return &Client{clientset: clientset}, nil
}

// NewForClientset wraps an existing clientset.
func NewForClientset(cs kubernetes.Interface) *Client {
	return &Client{clientset: cs}
}

// Container identifies one container of a pod.
type Container struct {
	Pod  string
	Name string
	// Crashed is set when the container's last run terminated with a
	// non-zero exit code; its previous log holds the traceback.
	Crashed  bool
	Restarts int32
}

// ResolvePods returns the pods behind resource, given as type/name
// (pod, deployment, statefulset, daemonset) or a bare pod name.
func (c *Client) ResolvePods(ctx context.Context, namespace, resource string) ([]corev1.Pod, error) {
	resourceType, resourceName := "pod", resource
	if parts := strings.SplitN(resource, "/", 2); len(parts) == 2 {
		resourceType, resourceName = parts[0], parts[1]
	}
	if resourceName == "" {
		return nil, fmt.Errorf("invalid resource format: %s (expected type/name)", resource)
	}

	var selector *metav1.LabelSelector
	switch resourceType {
	case "pod", "po":
		pod, err := c.clientset.CoreV1().Pods(namespace).Get(ctx, resourceName, metav1.GetOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to get pod %s: %w", resourceName, err)
		}
		return []corev1.Pod{*pod}, nil

	case "deployment", "deploy":
		deploy, err := c.clientset.AppsV1().Deployments(namespace).Get(ctx, resourceName, metav1.GetOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to get deployment %s: %w", resourceName, err)
		}
		selector = deploy.Spec.Selector

	case "statefulset", "sts":
		sts, err := c.clientset.AppsV1().StatefulSets(namespace).Get(ctx, resourceName, metav1.GetOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to get statefulset %s: %w", resourceName, err)
		}
		selector = sts.Spec.Selector

	case "daemonset", "ds":
		ds, err := c.clientset.AppsV1().DaemonSets(namespace).Get(ctx, resourceName, metav1.GetOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to get daemonset %s: %w", resourceName, err)
		}
		selector = ds.Spec.Selector

	default:
		return nil, fmt.Errorf("unsupported resource type: %s (supported: pod, deployment, statefulset, daemonset)", resourceType)
	}
	return c.podsForSelector(ctx, namespace, selector)
}

func (c *Client) podsForSelector(ctx context.Context, namespace string, selector *metav1.LabelSelector) ([]corev1.Pod, error) {
	if selector == nil {
		return nil, fmt.Errorf("workload has no pod selector")
	}
	listOptions := metav1.ListOptions{
		LabelSelector: metav1.FormatLabelSelector(selector),
	}
	pods, err := c.clientset.CoreV1().Pods(namespace).List(ctx, listOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to list pods: %w", err)
	}
	items := pods.Items
	sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
	return items, nil
}

// Containers lists the containers of pod, crashed ones first.
func Containers(pod *corev1.Pod) []Container {
	statuses := make(map[string]corev1.ContainerStatus, len(pod.Status.ContainerStatuses))
	for _, s := range pod.Status.ContainerStatuses {
		statuses[s.Name] = s
	}
	out := make([]Container, 0, len(pod.Spec.Containers))
	for _, spec := range pod.Spec.Containers {
		ct := Container{Pod: pod.Name, Name: spec.Name}
		if s, ok := statuses[spec.Name]; ok {
			ct.Restarts = s.RestartCount
			ct.Crashed = terminatedWithError(s.LastTerminationState) || terminatedWithError(s.State)
		}
		out = append(out, ct)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Crashed && !out[j].Crashed })
	return out
}

func terminatedWithError(s corev1.ContainerState) bool {
	return s.Terminated != nil && s.Terminated.ExitCode != 0
}

// PodLogs returns the log of one container. previous selects the log of
// the last terminated run; tail limits the number of lines when positive.
func (c *Client) PodLogs(ctx context.Context, namespace, pod, container string, previous bool, tail int64) (string, error) {
	opts := &corev1.PodLogOptions{Container: container, Previous: previous}
	if tail > 0 {
		opts.TailLines = &tail
	}
	stream, err := c.clientset.CoreV1().Pods(namespace).GetLogs(pod, opts).Stream(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get logs of %s/%s: %w", pod, container, err)
	}
	defer stream.Close()

	data, err := io.ReadAll(io.LimitReader(stream, maxLogBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read logs of %s/%s: %w", pod, container, err)
	}
	return string(data), nil
}
