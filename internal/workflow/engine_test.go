package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/EternisAI/zone-orchestrator/internal/cluster"
	"github.com/EternisAI/zone-orchestrator/internal/pipeline"
	"github.com/EternisAI/zone-orchestrator/internal/poll"
	"github.com/EternisAI/zone-orchestrator/internal/provider"
	"github.com/EternisAI/zone-orchestrator/internal/status"
	"github.com/EternisAI/zone-orchestrator/internal/zonepartner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/runtime"
	k8sfake "k8s.io/client-go/kubernetes/fake"
)

const partnerID = "3fa85f64-5717-4562-b3fc-2c963f66afa6"

type write struct {
	field string
	value string
}

type recordingStatuses struct {
	mu     sync.Mutex
	writes []write
	fields map[string]string
}

func (r *recordingStatuses) Update(ctx context.Context, id, field, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, write{field, value})
	if r.fields == nil {
		r.fields = map[string]string{}
	}
	r.fields[field] = value
	return nil
}

func (r *recordingStatuses) Get(ctx context.Context, id string) (status.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.writes) == 0 {
		return status.Record{}, status.ErrNotFound
	}
	fields := make(map[string]string, len(r.fields))
	for k, v := range r.fields {
		fields[k] = v
	}
	return status.Record{Fields: fields}, nil
}

func (r *recordingStatuses) snapshot() []write {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]write(nil), r.writes...)
}

func (r *recordingStatuses) field(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fields[name]
}

type memoryDescriptors struct {
	mu    sync.Mutex
	items map[string]zonepartner.ZonePartner
}

func (m *memoryDescriptors) Save(zp *zonepartner.ZonePartner) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.items == nil {
		m.items = map[string]zonepartner.ZonePartner{}
	}
	if saved, ok := m.items[zp.PartnerID]; ok && saved.Variables.Region != zp.Variables.Region {
		return zonepartner.ErrAlreadyExists
	}
	m.items[zp.PartnerID] = *zp
	return nil
}

func (m *memoryDescriptors) Load(id string) (*zonepartner.ZonePartner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	zp, ok := m.items[id]
	if !ok {
		return nil, zonepartner.ErrNotFound
	}
	return &zp, nil
}

// events records collaborator calls across stubs so tests can assert ordering.
type events struct {
	mu  sync.Mutex
	log []string
}

func (e *events) add(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log = append(e.log, name)
}

func (e *events) list() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.log...)
}

type stubTrigger struct {
	events *events
	err    error
	// release, when set, blocks the trigger until closed or ctx is done.
	release chan struct{}
	calls   []pipeline.Params
	mu      sync.Mutex
}

func (s *stubTrigger) Trigger(ctx context.Context, params pipeline.Params) error {
	s.mu.Lock()
	s.calls = append(s.calls, params)
	s.mu.Unlock()
	s.events.add("trigger")

	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.err
}

func (s *stubTrigger) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type stubRoles struct {
	events *events
	err    error
}

func (s *stubRoles) AssumeForTenant(ctx context.Context, id, accountID, deploymentName, region string) error {
	s.events.add("assume:" + accountID)
	return s.err
}

func loadBalancer(namespace, name, hostname string) *corev1.Service {
	return &corev1.Service{
		ObjectMeta: metav1.ObjectMeta{Name: name, Namespace: namespace},
		Spec:       corev1.ServiceSpec{Type: corev1.ServiceTypeLoadBalancer},
		Status: corev1.ServiceStatus{LoadBalancer: corev1.LoadBalancerStatus{
			Ingress: []corev1.LoadBalancerIngress{{Hostname: hostname}},
		}},
	}
}

func zoneServices() []runtime.Object {
	return []runtime.Object{
		loadBalancer("istio-system", "istio-ingressgateway", "kubeflow.elb.amazonaws.com"),
		loadBalancer("pz-external", "pz-external-service", "external.elb.amazonaws.com"),
		loadBalancer("s3-sftp-server", "sftp-loadbalancer", "sftp.elb.amazonaws.com"),
	}
}

type harness struct {
	engine      *Engine
	statuses    *recordingStatuses
	descriptors *memoryDescriptors
	trigger     *stubTrigger
	roles       *stubRoles
	events      *events
	clientset   *k8sfake.Clientset
}

func newHarness(t *testing.T, cfg Config, objects ...runtime.Object) *harness {
	t.Helper()

	ev := &events{}
	h := &harness{
		statuses:    &recordingStatuses{},
		descriptors: &memoryDescriptors{},
		trigger:     &stubTrigger{events: ev},
		roles:       &stubRoles{events: ev},
		events:      ev,
		clientset:   k8sfake.NewSimpleClientset(objects...),
	}

	cfg.PollOptions = []poll.Option{
		poll.WithInterval(time.Millisecond),
		poll.WithTimeout(50 * time.Millisecond),
	}
	connect := func(ctx context.Context, id string) (cluster.API, error) {
		return cluster.NewClientForClientset(h.clientset), nil
	}
	h.engine = NewEngine(Deps{
		Descriptors: h.descriptors,
		Statuses:    h.statuses,
		Resolve: provider.NewResolver(provider.Deps{
			Trigger:     h.trigger,
			Connect:     connect,
			PollOptions: cfg.PollOptions,
		}),
		Connect: connect,
		Roles:   h.roles,
	}, cfg)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = h.engine.Shutdown(ctx)
	})
	return h
}

func scenario(planOnly bool) *zonepartner.ZonePartner {
	return &zonepartner.ZonePartner{
		PlanOnly:  planOnly,
		AccountID: "123456789012",
		Name:      "Edge",
		Location:  "us",
		Cloud:     zonepartner.CloudAWS,
		PartnerID: partnerID,
		UserID:    "user-1",
		Variables: zonepartner.Variables{
			Region:         "us-east-1",
			DeploymentName: "edge-test",
			SubnetCount:    2,
			InstanceTypes:  []string{"m5.2xlarge"},
			MinNodes:       2,
			MaxNodes:       5,
			DesiredNodes:   3,
		},
	}
}

func TestCreatePlanOnlySkipsProviderAndStatus(t *testing.T) {
	h := newHarness(t, Config{})

	result, err := h.engine.Create(context.Background(), scenario(true))
	require.NoError(t, err)

	assert.Contains(t, result.Message, "plan completed")
	assert.Zero(t, h.trigger.count())
	assert.Empty(t, h.statuses.snapshot())

	saved, err := h.descriptors.Load(partnerID)
	require.NoError(t, err)
	assert.True(t, saved.PlanOnly)
}

func TestCreateWritesCreatingThenComplete(t *testing.T) {
	h := newHarness(t, Config{})

	_, err := h.engine.Create(context.Background(), scenario(false))
	require.NoError(t, err)

	assert.Equal(t, []write{
		{status.FieldTerraform, status.Creating},
		{status.FieldTerraform, status.Complete},
	}, h.statuses.snapshot())
	assert.Equal(t, 1, h.trigger.count())
}

func TestCreateTriggerFailureWritesError(t *testing.T) {
	h := newHarness(t, Config{})
	h.trigger.err = errors.New("jenkins rejected the build")

	_, err := h.engine.Create(context.Background(), scenario(false))
	require.Error(t, err)

	var collab *provider.CollaboratorError
	assert.ErrorAs(t, err, &collab)
	assert.Equal(t, []write{
		{status.FieldTerraform, status.Creating},
		{status.FieldTerraform, status.Error},
	}, h.statuses.snapshot())
}

func TestCreateUnsupportedCloudIsRejectedUpFront(t *testing.T) {
	h := newHarness(t, Config{})
	zp := scenario(false)
	zp.Cloud = zonepartner.CloudAzure
	zp.AccountID = ""

	err := h.engine.SubmitCreate(zp)
	assert.ErrorIs(t, err, provider.ErrUnsupportedProvider)

	_, loadErr := h.descriptors.Load(partnerID)
	assert.ErrorIs(t, loadErr, zonepartner.ErrNotFound)
	assert.Empty(t, h.statuses.snapshot())
	_, running := h.engine.InFlight(partnerID)
	assert.False(t, running)
}

func TestDeleteWithoutDescriptorIsNotFound(t *testing.T) {
	h := newHarness(t, Config{})

	_, err := h.engine.Delete(context.Background(), partnerID)
	assert.ErrorIs(t, err, zonepartner.ErrNotFound)
	assert.ErrorIs(t, h.engine.SubmitDelete(partnerID), zonepartner.ErrNotFound)
	assert.Empty(t, h.statuses.snapshot())
	assert.Zero(t, h.trigger.count())
}

func TestDeleteRunsPreCleanupThenDestroy(t *testing.T) {
	h := newHarness(t, Config{}, zoneServices()...)
	require.NoError(t, h.descriptors.Save(scenario(false)))

	_, err := h.engine.Delete(context.Background(), partnerID)
	require.NoError(t, err)

	assert.Equal(t, []write{
		{status.FieldTerraform, status.Deleting},
		{status.FieldTerraform, status.Deleted},
	}, h.statuses.snapshot())
	require.Equal(t, 1, h.trigger.count())
	assert.Equal(t, "true", h.trigger.calls[0][pipeline.ParamDestroyEnv])

	for _, ref := range provider.PreCleanupServices {
		svc, err := h.clientset.CoreV1().Services(ref.Namespace).Get(context.Background(), ref.Name, metav1.GetOptions{})
		require.NoError(t, err)
		assert.Equal(t, corev1.ServiceTypeClusterIP, svc.Spec.Type)
	}
}

func TestDeletePreCleanupFailureNeverTriggers(t *testing.T) {
	services := zoneServices()[:2]
	h := newHarness(t, Config{}, services...)
	require.NoError(t, h.descriptors.Save(scenario(false)))

	_, err := h.engine.Delete(context.Background(), partnerID)
	assert.ErrorIs(t, err, provider.ErrServicesNotRemoved)
	assert.Zero(t, h.trigger.count())
	assert.Equal(t, []write{
		{status.FieldTerraform, status.Deleting},
		{status.FieldTerraform, status.DeleteError},
	}, h.statuses.snapshot())
}

func TestDeleteAssumesRoleBeforeProvider(t *testing.T) {
	h := newHarness(t, Config{UseAssumedRoles: true}, zoneServices()...)
	require.NoError(t, h.descriptors.Save(scenario(false)))

	_, err := h.engine.Delete(context.Background(), partnerID)
	require.NoError(t, err)
	assert.Equal(t, []string{"assume:123456789012", "trigger"}, h.events.list())
}

func TestDeleteRoleFailureWritesDeleteError(t *testing.T) {
	h := newHarness(t, Config{UseAssumedRoles: true}, zoneServices()...)
	h.roles.err = errors.New("access denied")
	require.NoError(t, h.descriptors.Save(scenario(false)))

	_, err := h.engine.Delete(context.Background(), partnerID)
	require.Error(t, err)
	assert.Zero(t, h.trigger.count())
	assert.Equal(t, status.DeleteError, h.statuses.field(status.FieldTerraform))
}

func TestRedeploy(t *testing.T) {
	h := newHarness(t, Config{})
	require.NoError(t, h.descriptors.Save(scenario(false)))

	_, err := h.engine.Redeploy(context.Background(), partnerID)
	require.NoError(t, err)
	assert.Equal(t, []write{
		{status.FieldTerraform, status.Redeploying},
		{status.FieldTerraform, status.Redeployed},
	}, h.statuses.snapshot())
	assert.Equal(t, pipeline.RedeployParams(scenario(false)), h.trigger.calls[0])
}

func TestRedeployFailure(t *testing.T) {
	h := newHarness(t, Config{})
	h.trigger.err = errors.New("boom")
	require.NoError(t, h.descriptors.Save(scenario(false)))

	_, err := h.engine.Redeploy(context.Background(), partnerID)
	require.Error(t, err)
	assert.Equal(t, status.RedeployErr, h.statuses.field(status.FieldTerraform))
}

func TestSubmitCreateRunsInBackground(t *testing.T) {
	h := newHarness(t, Config{})
	h.trigger.release = make(chan struct{})

	require.NoError(t, h.engine.SubmitCreate(scenario(false)))

	assert.Eventually(t, func() bool {
		return h.statuses.field(status.FieldTerraform) == status.Creating
	}, time.Second, 5*time.Millisecond)
	run, ok := h.engine.InFlight(partnerID)
	require.True(t, ok)
	assert.Equal(t, KindCreate, run.Kind)

	close(h.trigger.release)
	assert.Eventually(t, func() bool {
		return h.statuses.field(status.FieldTerraform) == status.Complete
	}, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		_, ok := h.engine.InFlight(partnerID)
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestSubmitRejectsDuplicateInFlight(t *testing.T) {
	h := newHarness(t, Config{})
	h.trigger.release = make(chan struct{})
	defer close(h.trigger.release)

	require.NoError(t, h.engine.SubmitCreate(scenario(false)))

	err := h.engine.SubmitRedeploy(partnerID)
	assert.ErrorIs(t, err, ErrWorkflowInProgress)

	var inProgress *InProgressError
	require.ErrorAs(t, err, &inProgress)
	assert.Equal(t, KindCreate, inProgress.Kind)
}

func TestSubmitDeleteDuringCreateIsInProgress(t *testing.T) {
	h := newHarness(t, Config{}, zoneServices()...)
	h.trigger.release = make(chan struct{})
	defer close(h.trigger.release)

	require.NoError(t, h.engine.SubmitCreate(scenario(false)))

	// the create is still blocked on its trigger
	for _, submit := range []func(string) error{h.engine.SubmitDelete, h.engine.SubmitRedeploy} {
		err := submit(strings.ToUpper(partnerID))
		assert.ErrorIs(t, err, ErrWorkflowInProgress)
		assert.NotErrorIs(t, err, zonepartner.ErrNotFound)
	}
	err := h.engine.SubmitDeployWorkbench(WorkbenchDeployment{PartnerID: partnerID, PipelineStatus: "SUCCESS"})
	assert.ErrorIs(t, err, ErrWorkflowInProgress)

	run, ok := h.engine.InFlight(partnerID)
	require.True(t, ok)
	assert.Equal(t, KindCreate, run.Kind)
}

func TestSubmitCreateConflictingDescriptorKeepsStatus(t *testing.T) {
	h := newHarness(t, Config{})
	_, err := h.engine.Create(context.Background(), scenario(false))
	require.NoError(t, err)
	writes := h.statuses.snapshot()

	changed := scenario(false)
	changed.Variables.Region = "eu-west-1"
	assert.ErrorIs(t, h.engine.SubmitCreate(changed), zonepartner.ErrAlreadyExists)

	_, running := h.engine.InFlight(partnerID)
	assert.False(t, running)
	assert.Equal(t, writes, h.statuses.snapshot())
	assert.Equal(t, 1, h.trigger.count())

	zp, err := h.descriptors.Load(partnerID)
	require.NoError(t, err)
	assert.Equal(t, "us-east-1", zp.Variables.Region)
}

func TestFailedSubmitReleasesSlot(t *testing.T) {
	h := newHarness(t, Config{})

	assert.ErrorIs(t, h.engine.SubmitDelete(partnerID), zonepartner.ErrNotFound)
	_, running := h.engine.InFlight(partnerID)
	assert.False(t, running)

	assert.ErrorIs(t, h.engine.SubmitRedeploy("not-a-uuid"), zonepartner.ErrInvalidPartnerID)

	require.NoError(t, h.engine.SubmitCreate(scenario(false)))
	assert.Eventually(t, func() bool {
		return h.statuses.field(status.FieldTerraform) == status.Complete
	}, time.Second, 5*time.Millisecond)
}

func TestShutdownRecordsTerminalStatus(t *testing.T) {
	h := newHarness(t, Config{})
	h.trigger.release = make(chan struct{})

	require.NoError(t, h.engine.SubmitCreate(scenario(false)))
	assert.Eventually(t, func() bool { return h.trigger.count() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, h.engine.Shutdown(ctx))

	assert.Equal(t, status.Error, h.statuses.field(status.FieldTerraform))
}
