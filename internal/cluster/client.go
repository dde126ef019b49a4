// Package cluster drives the zone's Kubernetes control plane: listing pods and
// services, converting service types, editing config maps, and waiting for
// those changes to converge.
package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/tools/clientcmd"
	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"
)

// API is the subset of the cluster control plane the orchestrator uses.
// An empty namespace means all namespaces.
type API interface {
	ListPods(ctx context.Context, namespace, labelSelector string) ([]corev1.Pod, error)
	ListServices(ctx context.Context, namespace string) ([]corev1.Service, error)
	PatchServiceType(ctx context.Context, namespace, name string, serviceType corev1.ServiceType) error
	UpdateConfigMap(ctx context.Context, namespace, name, key, value string) error
	DeletePods(ctx context.Context, namespace, labelSelector string) error
}

// Connector opens an API handle for one tenant's cluster.
type Connector func(ctx context.Context, partnerID string) (API, error)

type Client struct {
	clientset kubernetes.Interface
}

// NewClient builds a client from a kubeconfig file. When the kubeconfig
// authenticates through an exec plugin and creds is set, the current lease is
// passed to the plugin's environment.
func NewClient(ctx context.Context, kubeconfigPath string, creds aws.CredentialsProvider) (*Client, error) {
	config, err := clientcmd.BuildConfigFromFlags("", kubeconfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to build kubeconfig: %w", err)
	}

	if config.ExecProvider != nil && creds != nil {
		lease, err := creds.Retrieve(ctx)
		if err != nil {
			return nil, fmt.Errorf("cluster credentials: %w", err)
		}
		config.ExecProvider.Env = append(config.ExecProvider.Env, execEnv(lease)...)
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}

	return &Client{clientset: clientset}, nil
}

func NewClientForClientset(clientset kubernetes.Interface) *Client {
	return &Client{clientset: clientset}
}

// KubeconfigPath returns the tenant's kubeconfig written by the provisioning
// pipeline, or the user's default kubeconfig when the tenant has none.
func KubeconfigPath(stateRoot, partnerID string) string {
	path := filepath.Join(stateRoot, partnerID, "config_"+partnerID)
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return clientcmd.RecommendedHomeFile
}

func NewConnector(stateRoot string, creds aws.CredentialsProvider) Connector {
	return func(ctx context.Context, partnerID string) (API, error) {
		return NewClient(ctx, KubeconfigPath(stateRoot, partnerID), creds)
	}
}

func execEnv(lease aws.Credentials) []clientcmdapi.ExecEnvVar {
	env := []clientcmdapi.ExecEnvVar{
		{Name: "AWS_ACCESS_KEY_ID", Value: lease.AccessKeyID},
		{Name: "AWS_SECRET_ACCESS_KEY", Value: lease.SecretAccessKey},
	}
	if lease.SessionToken != "" {
		env = append(env, clientcmdapi.ExecEnvVar{Name: "AWS_SESSION_TOKEN", Value: lease.SessionToken})
	}
	return env
}

func (c *Client) ListPods(ctx context.Context, namespace, labelSelector string) ([]corev1.Pod, error) {
	pods, err := c.clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{LabelSelector: labelSelector})
	if err != nil {
		return nil, fmt.Errorf("list pods: %w", err)
	}
	return pods.Items, nil
}

func (c *Client) ListServices(ctx context.Context, namespace string) ([]corev1.Service, error) {
	services, err := c.clientset.CoreV1().Services(namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	return services.Items, nil
}

type jsonPatchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value"`
}

func (c *Client) PatchServiceType(ctx context.Context, namespace, name string, serviceType corev1.ServiceType) error {
	patch, err := json.Marshal([]jsonPatchOp{{Op: "replace", Path: "/spec/type", Value: serviceType}})
	if err != nil {
		return err
	}

	_, err = c.clientset.CoreV1().Services(namespace).Patch(ctx, name, types.JSONPatchType, patch, metav1.PatchOptions{})
	if err != nil {
		return fmt.Errorf("patch service %s/%s: %w", namespace, name, err)
	}
	return nil
}

// UpdateConfigMap replaces the config map's data with the single key.
func (c *Client) UpdateConfigMap(ctx context.Context, namespace, name, key, value string) error {
	configMaps := c.clientset.CoreV1().ConfigMaps(namespace)
	cm, err := configMaps.Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return fmt.Errorf("get configmap %s/%s: %w", namespace, name, err)
	}

	cm.Data = map[string]string{key: value}
	if _, err := configMaps.Update(ctx, cm, metav1.UpdateOptions{}); err != nil {
		return fmt.Errorf("update configmap %s/%s: %w", namespace, name, err)
	}
	return nil
}

// DeletePods removes matching pods immediately, without a grace period.
func (c *Client) DeletePods(ctx context.Context, namespace, labelSelector string) error {
	pods, err := c.ListPods(ctx, namespace, labelSelector)
	if err != nil {
		return err
	}

	grace := int64(0)
	for _, pod := range pods {
		err := c.clientset.CoreV1().Pods(pod.Namespace).Delete(ctx, pod.Name, metav1.DeleteOptions{GracePeriodSeconds: &grace})
		if err != nil {
			return fmt.Errorf("delete pod %s/%s: %w", pod.Namespace, pod.Name, err)
		}
	}
	return nil
}
