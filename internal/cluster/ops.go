package cluster

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/EternisAI/zone-orchestrator/internal/poll"
	corev1 "k8s.io/api/core/v1"
)

// Ops wraps an API with bounded waits. Every operation retries through the
// poller until it converges or the poll timeout elapses.
type Ops struct {
	api  API
	opts []poll.Option
}

func NewOps(api API, opts ...poll.Option) *Ops {
	return &Ops{api: api, opts: opts}
}

func (o *Ops) options(name string) []poll.Option {
	return append(append([]poll.Option{}, o.opts...), poll.WithName(name))
}

func podReady(pod *corev1.Pod) bool {
	if pod.Status.Phase != corev1.PodRunning {
		return false
	}
	for _, cs := range pod.Status.ContainerStatuses {
		if !cs.Ready {
			return false
		}
	}
	return true
}

// WaitForAllPodsReady waits until every pod in the cluster is running with
// all containers ready.
func (o *Ops) WaitForAllPodsReady(ctx context.Context) error {
	return o.WaitForPodsReady(ctx, "", "")
}

func (o *Ops) WaitForPodsReady(ctx context.Context, namespace, labelSelector string) error {
	_, err := poll.Until(ctx, poll.Ready(func(ctx context.Context) (bool, error) {
		pods, err := o.api.ListPods(ctx, namespace, labelSelector)
		if err != nil {
			return false, err
		}
		for i := range pods {
			if !podReady(&pods[i]) {
				slog.Debug("Waiting for pods to be ready", "namespace", namespace, "selector", labelSelector, "pod", pods[i].Name)
				return false, nil
			}
		}
		return true, nil
	}), o.options("wait for pods ready")...)
	if err != nil {
		return err
	}

	slog.Info("Pods are ready", "namespace", namespace, "selector", labelSelector)
	return nil
}

// LoadBalancerHostname waits for the named service, in any namespace, to
// publish an external hostname.
func (o *Ops) LoadBalancerHostname(ctx context.Context, serviceName string) (string, error) {
	hostname, err := poll.Until(ctx, func(ctx context.Context) (string, bool, error) {
		services, err := o.api.ListServices(ctx, "")
		if err != nil {
			return "", false, err
		}
		for _, svc := range services {
			if svc.Name != serviceName {
				continue
			}
			for _, ingress := range svc.Status.LoadBalancer.Ingress {
				if ingress.Hostname != "" {
					return ingress.Hostname, true, nil
				}
			}
		}
		return "", false, nil
	}, o.options(fmt.Sprintf("load balancer hostname for %s", serviceName))...)
	if err != nil {
		return "", err
	}

	slog.Info("Load balancer hostname found", "service", serviceName, "hostname", hostname)
	return hostname, nil
}

func (o *Ops) PatchServiceType(ctx context.Context, namespace, name string, serviceType corev1.ServiceType) error {
	err := poll.Do(ctx, func(ctx context.Context) error {
		return o.api.PatchServiceType(ctx, namespace, name, serviceType)
	}, o.options(fmt.Sprintf("patch service %s/%s", namespace, name))...)
	if err != nil {
		return err
	}

	slog.Info("Service patched", "namespace", namespace, "service", name, "type", serviceType)
	return nil
}

func (o *Ops) UpdateConfigMap(ctx context.Context, namespace, name, key, value string) error {
	err := poll.Do(ctx, func(ctx context.Context) error {
		return o.api.UpdateConfigMap(ctx, namespace, name, key, value)
	}, o.options(fmt.Sprintf("update configmap %s/%s", namespace, name))...)
	if err != nil {
		return err
	}

	slog.Info("ConfigMap updated", "namespace", namespace, "configmap", name)
	return nil
}

func (o *Ops) ForceDeletePods(ctx context.Context, namespace, labelSelector string) error {
	err := poll.Do(ctx, func(ctx context.Context) error {
		return o.api.DeletePods(ctx, namespace, labelSelector)
	}, o.options(fmt.Sprintf("delete pods %s in %s", labelSelector, namespace))...)
	if err != nil {
		return err
	}

	slog.Info("Pods deleted", "namespace", namespace, "selector", labelSelector)
	return nil
}
