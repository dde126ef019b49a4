package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	httpserver "github.com/EternisAI/zone-orchestrator/internal/api/http"
	"github.com/EternisAI/zone-orchestrator/internal/cluster"
	"github.com/EternisAI/zone-orchestrator/internal/credentials"
	"github.com/EternisAI/zone-orchestrator/internal/pipeline"
	"github.com/EternisAI/zone-orchestrator/internal/poll"
	"github.com/EternisAI/zone-orchestrator/internal/provider"
	"github.com/EternisAI/zone-orchestrator/internal/status"
	"github.com/EternisAI/zone-orchestrator/internal/workflow"
	"github.com/EternisAI/zone-orchestrator/internal/zonepartner"
	"github.com/gin-gonic/gin"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	k8sfake "k8s.io/client-go/kubernetes/fake"
)

const adminAPIKey = "system-test-key"

// RecordingTrigger stands in for the CI pipeline and keeps every submitted parameter set.
type RecordingTrigger struct {
	mu    sync.Mutex
	calls []pipeline.Params
}

func (r *RecordingTrigger) Trigger(ctx context.Context, params pipeline.Params) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, params)
	return nil
}

func (r *RecordingTrigger) Calls() []pipeline.Params {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]pipeline.Params(nil), r.calls...)
}

type Environment struct {
	Router      *gin.Engine
	Engine      *workflow.Engine
	Statuses    status.Store
	Descriptors *zonepartner.Repository
	Trigger     *RecordingTrigger
	Clientset   *k8sfake.Clientset
}

// NewEnvironment wires the real engine, handlers and descriptor repository
// around the given status store. Only the pipeline and the cluster are faked.
func NewEnvironment(t *testing.T, statuses status.Store) *Environment {
	t.Helper()

	env := &Environment{
		Statuses:    statuses,
		Descriptors: zonepartner.NewRepository(t.TempDir()),
		Trigger:     &RecordingTrigger{},
		Clientset:   k8sfake.NewSimpleClientset(zoneServices()...),
	}

	pollOptions := []poll.Option{
		poll.WithInterval(10 * time.Millisecond),
		poll.WithTimeout(time.Second),
	}
	connect := func(ctx context.Context, partnerID string) (cluster.API, error) {
		return cluster.NewClientForClientset(env.Clientset), nil
	}

	creds := credentials.NewStore(time.Hour, false)
	t.Cleanup(creds.Close)

	env.Engine = workflow.NewEngine(workflow.Deps{
		Descriptors: env.Descriptors,
		Statuses:    statuses,
		Resolve: provider.NewResolver(provider.Deps{
			Trigger:     env.Trigger,
			Connect:     connect,
			PollOptions: pollOptions,
		}),
		Connect: connect,
	}, workflow.Config{PollOptions: pollOptions})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = env.Engine.Shutdown(ctx)
	})

	env.Router = gin.New()
	httpserver.SetupRoute(env.Router, httpserver.Config{AdminAPIKey: adminAPIKey}, &httpserver.Services{
		Workflows:   env.Engine,
		Statuses:    statuses,
		Credentials: creds,
		Ready:       func() error { return nil },
		LogLevel:    "debug",
	})
	return env
}

func zoneServices() []runtime.Object {
	lb := func(namespace, name, hostname string) runtime.Object {
		return &corev1.Service{
			ObjectMeta: metav1.ObjectMeta{Namespace: namespace, Name: name},
			Spec:       corev1.ServiceSpec{Type: corev1.ServiceTypeLoadBalancer},
			Status: corev1.ServiceStatus{LoadBalancer: corev1.LoadBalancerStatus{
				Ingress: []corev1.LoadBalancerIngress{{Hostname: hostname}},
			}},
		}
	}
	return []runtime.Object{
		lb("istio-system", "istio-ingressgateway", "kubeflow.elb.example.com"),
		lb("pz-external", "pz-external-service", "external.elb.example.com"),
		lb("s3-sftp-server", "sftp-loadbalancer", "sftp.elb.example.com"),
	}
}

func doJSON(router *gin.Engine, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}
