package cluster

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/EternisAI/zone-orchestrator/internal/credentials"
	"github.com/EternisAI/zone-orchestrator/internal/poll"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	k8sfake "k8s.io/client-go/kubernetes/fake"
	"k8s.io/client-go/tools/clientcmd"
)

var fastPoll = []poll.Option{
	poll.WithInterval(5 * time.Millisecond),
	poll.WithTimeout(200 * time.Millisecond),
}

func pod(namespace, name string, phase corev1.PodPhase, ready bool) *corev1.Pod {
	return &corev1.Pod{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace, Labels: map[string]string{"app": name}},
		Status: corev1.PodStatus{
			Phase:             phase,
			ContainerStatuses: []corev1.ContainerStatus{{Name: "main", Ready: ready}},
		},
	}
}

func loadBalancer(namespace, name, hostname string) *corev1.Service {
	svc := &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace},
		Spec:       corev1.ServiceSpec{Type: corev1.ServiceTypeLoadBalancer},
	}
	if hostname != "" {
		svc.Status.LoadBalancer.Ingress = []corev1.LoadBalancerIngress{{Hostname: hostname}}
	}
	return svc
}

func newOps(objects ...runtime.Object) (*Ops, *k8sfake.Clientset) {
	clientset := k8sfake.NewSimpleClientset(objects...)
	return NewOps(NewClientForClientset(clientset), fastPoll...), clientset
}

func TestWaitForAllPodsReady(t *testing.T) {
	ops, _ := newOps(
		pod("kubeflow", "dashboard", corev1.PodRunning, true),
		pod("istio-system", "istiod", corev1.PodRunning, true),
	)

	assert.NoError(t, ops.WaitForAllPodsReady(context.Background()))
}

func TestWaitForAllPodsReadyTimesOut(t *testing.T) {
	ops, _ := newOps(
		pod("kubeflow", "dashboard", corev1.PodRunning, true),
		pod("kubeflow", "pipeline", corev1.PodPending, false),
	)

	err := ops.WaitForAllPodsReady(context.Background())
	assert.ErrorIs(t, err, poll.ErrTimedOut)
}

func TestWaitForPodsReadyFiltersByLabel(t *testing.T) {
	ops, _ := newOps(
		pod("kubeflow", "dashboard", corev1.PodRunning, true),
		pod("kubeflow", "pipeline", corev1.PodRunning, false),
	)

	assert.NoError(t, ops.WaitForPodsReady(context.Background(), "kubeflow", "app=dashboard"))
	assert.ErrorIs(t, ops.WaitForPodsReady(context.Background(), "kubeflow", "app=pipeline"), poll.ErrTimedOut)
}

func TestPodReadyRequiresRunningPhase(t *testing.T) {
	assert.False(t, podReady(pod("ns", "p", corev1.PodSucceeded, true)))
	assert.True(t, podReady(pod("ns", "p", corev1.PodRunning, true)))
}

func TestLoadBalancerHostname(t *testing.T) {
	ops, _ := newOps(
		loadBalancer("istio-system", "istio-ingressgateway", "abc.elb.amazonaws.com"),
		loadBalancer("s3-sftp-server", "sftp-loadbalancer", ""),
	)

	hostname, err := ops.LoadBalancerHostname(context.Background(), "istio-ingressgateway")
	require.NoError(t, err)
	assert.Equal(t, "abc.elb.amazonaws.com", hostname)

	_, err = ops.LoadBalancerHostname(context.Background(), "sftp-loadbalancer")
	assert.ErrorIs(t, err, poll.ErrTimedOut)
}

func TestPatchServiceType(t *testing.T) {
	ops, clientset := newOps(loadBalancer("pz-external", "pz-external-service", "x.elb.amazonaws.com"))

	err := ops.PatchServiceType(context.Background(), "pz-external", "pz-external-service", corev1.ServiceTypeClusterIP)
	require.NoError(t, err)

	svc, err := clientset.CoreV1().Services("pz-external").Get(context.Background(), "pz-external-service", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, corev1.ServiceTypeClusterIP, svc.Spec.Type)
}

func TestPatchMissingServiceTimesOut(t *testing.T) {
	ops, _ := newOps()

	err := ops.PatchServiceType(context.Background(), "pz-external", "pz-external-service", corev1.ServiceTypeClusterIP)
	assert.ErrorIs(t, err, poll.ErrTimedOut)
}

func TestUpdateConfigMap(t *testing.T) {
	ops, clientset := newOps(&corev1.ConfigMap{
		ObjectMeta: metav1.ObjectMeta{Name: "sftp-authorized-keys", Namespace: "s3-sftp-server"},
		Data:       map[string]string{"authorized_keys": "old", "stale": "x"},
	})

	err := ops.UpdateConfigMap(context.Background(), "s3-sftp-server", "sftp-authorized-keys", "authorized_keys", "ssh-ed25519 AAAA")
	require.NoError(t, err)

	cm, err := clientset.CoreV1().ConfigMaps("s3-sftp-server").Get(context.Background(), "sftp-authorized-keys", metav1.GetOptions{})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"authorized_keys": "ssh-ed25519 AAAA"}, cm.Data)
}

func TestForceDeletePods(t *testing.T) {
	ops, clientset := newOps(
		pod("s3-sftp-server", "sftp", corev1.PodRunning, true),
		pod("s3-sftp-server", "other", corev1.PodRunning, true),
	)

	require.NoError(t, ops.ForceDeletePods(context.Background(), "s3-sftp-server", "app=sftp"))

	pods, err := clientset.CoreV1().Pods("s3-sftp-server").List(context.Background(), metav1.ListOptions{})
	require.NoError(t, err)
	require.Len(t, pods.Items, 1)
	assert.Equal(t, "other", pods.Items[0].Name)
}

func TestKubeconfigPath(t *testing.T) {
	root := t.TempDir()
	id := "3fa85f64-5717-4562-b3fc-2c963f66afa6"

	assert.Equal(t, clientcmd.RecommendedHomeFile, KubeconfigPath(root, id))

	path := filepath.Join(root, id, "config_"+id)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("apiVersion: v1\n"), 0o600))
	assert.Equal(t, path, KubeconfigPath(root, id))
}

const execKubeconfig = `apiVersion: v1
kind: Config
clusters:
- name: zone
  cluster:
    server: https://zone.eks.amazonaws.com
contexts:
- name: zone
  context:
    cluster: zone
    user: zone
current-context: zone
users:
- name: zone
  user:
    exec:
      apiVersion: client.authentication.k8s.io/v1beta1
      command: aws
      args: ["eks", "get-token", "--cluster-name", "zone"]
`

func TestNewClientRequiresLeaseForExecKubeconfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte(execKubeconfig), 0o600))

	store := credentials.NewStore(time.Hour, false)
	defer store.Close()

	_, err := NewClient(context.Background(), path, store)
	assert.ErrorIs(t, err, credentials.ErrNotSet)

	require.NoError(t, store.Set(credentials.Secrets{
		AccessKeyID:     "AKIA",
		SecretAccessKey: "secret",
		SessionToken:    "token",
	}))
	client, err := NewClient(context.Background(), path, store)
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestExecEnvOmitsEmptySessionToken(t *testing.T) {
	env := execEnv(aws.Credentials{AccessKeyID: "AKIA", SecretAccessKey: "secret"})
	require.Len(t, env, 2)
	assert.Equal(t, "AWS_ACCESS_KEY_ID", env[0].Name)
	assert.Equal(t, "AWS_SECRET_ACCESS_KEY", env[1].Name)
}
