package e2e

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kilianp07/chpdispatch/app"
	"github.com/kilianp07/chpdispatch/config"
	"github.com/kilianp07/chpdispatch/core/factory"
	"github.com/kilianp07/chpdispatch/core/model"
	coremqtt "github.com/kilianp07/chpdispatch/core/mqtt"
)

const (
	org    = "e2e_org"
	bucket = "e2e_bucket"
	token  = "e2e-token"
)

// junitReport is a minimal representation of a JUnit XML report. The E2E
// suite writes such a report so CI systems can display the results.
type junitReport struct {
	XMLName  xml.Name        `xml:"testsuite"`
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Cases    []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	Name    string  `xml:"name,attr"`
	Failure *string `xml:"failure,omitempty"`
	Time    float64 `xml:"time,attr"`
}

// writeJUnit writes the provided report to the given path.
func writeJUnit(path string, rep junitReport) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	return enc.Encode(rep)
}

// startInflux starts an InfluxDB 2.7 container and returns it along with the
// base URL. The container is left running until the context is cancelled.
func startInflux(ctx context.Context, t *testing.T) (tc.Container, string) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "influxdb:2.7",
		ExposedPorts: []string{"8086/tcp"},
		Env: map[string]string{
			"DOCKER_INFLUXDB_INIT_MODE":        "setup",
			"DOCKER_INFLUXDB_INIT_USERNAME":    "e2e",
			"DOCKER_INFLUXDB_INIT_PASSWORD":    "e2e-password",
			"DOCKER_INFLUXDB_INIT_ORG":         org,
			"DOCKER_INFLUXDB_INIT_BUCKET":      bucket,
			"DOCKER_INFLUXDB_INIT_ADMIN_TOKEN": token,
		},
		WaitingFor: wait.ForHTTP("/health").WithPort("8086/tcp").WithStartupTimeout(60 * time.Second),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("unable to start influx container: %v", err)
	}
	host, _ := cont.Host(ctx)
	port, _ := cont.MappedPort(ctx, "8086")
	return cont, fmt.Sprintf("http://%s:%s", host, port.Port())
}

// startMosquitto spins up a basic Mosquitto broker for tests.
func startMosquitto(ctx context.Context, t *testing.T) (tc.Container, string) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2.0",
		ExposedPorts: []string{"1883/tcp"},
		Cmd:          []string{"mosquitto", "-c", "/mosquitto-no-auth.conf"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("unable to start mosquitto: %v", err)
	}
	host, _ := cont.Host(ctx)
	port, _ := cont.MappedPort(ctx, "1883")
	return cont, fmt.Sprintf("tcp://%s:%s", host, port.Port())
}

// startController subscribes to plans like a plant controller and
// acknowledges each one. Received plans are sent on the returned channel.
func startController(t *testing.T, broker string) <-chan coremqtt.PlanMessage {
	t.Helper()
	plans := make(chan coremqtt.PlanMessage, 4)
	opts := paho.NewClientOptions().AddBroker(broker).SetClientID("e2e-controller")
	c := paho.NewClient(opts)
	if tok := c.Connect(); tok.Wait() && tok.Error() != nil {
		t.Fatalf("controller connect: %v", tok.Error())
	}
	t.Cleanup(func() { c.Disconnect(250) })
	handler := func(cl paho.Client, msg paho.Message) {
		var m coremqtt.PlanMessage
		if err := json.Unmarshal(msg.Payload(), &m); err != nil {
			t.Errorf("decode plan: %v", err)
			return
		}
		ack, _ := json.Marshal(map[string]string{"run_id": m.RunID})
		cl.Publish(msg.Topic()+"/ack", 1, false, ack)
		plans <- m
	}
	if tok := c.Subscribe("chp/+/plan", 1, handler); tok.Wait() && tok.Error() != nil {
		t.Fatalf("controller subscribe: %v", tok.Error())
	}
	return plans
}

// Test_E2E_DispatchRun optimizes one day through the service with InfluxDB
// and Mosquitto started by testcontainers-go, then checks that the plan
// reached the controller and the Influx bucket.
func Test_E2E_DispatchRun(t *testing.T) {
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skipf("docker not installed: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	influxCont, influxURL := startInflux(ctx, t)
	if influxCont != nil {
		defer influxCont.Terminate(ctx) //nolint:errcheck
	}
	mqttCont, mqttURL := startMosquitto(ctx, t)
	if mqttCont != nil {
		defer mqttCont.Terminate(ctx) //nolint:errcheck
	}
	t.Logf("InfluxDB started at %s", influxURL)
	t.Logf("Mosquitto started at %s", mqttURL)

	cli := NewInfluxClient(influxURL, org, bucket, token)
	defer cli.Close()
	if err := cli.SetupBucket(ctx); err != nil {
		t.Fatalf("setup bucket: %v", err)
	}
	plans := startController(t, mqttURL)

	dir := t.TempDir()
	cfg := config.Default()
	cfg.Logging.Path = filepath.Join(dir, "runs.jsonl")
	cfg.MQTT.Enabled = true
	cfg.MQTT.Broker = mqttURL
	cfg.MQTT.ClientID = "e2e-dispatch"
	cfg.MQTT.SetDefaults()
	cfg.Metrics.Sinks = []factory.ModuleConfig{{
		Type: "influx",
		Conf: map[string]any{"url": influxURL, "token": token, "org": org, "bucket": bucket, "hourly": true},
	}}
	svc, err := app.New(cfg)
	if err != nil {
		t.Fatalf("service: %v", err)
	}

	start := time.Now().UTC().Truncate(time.Hour).Add(-24 * time.Hour)
	s := model.Hourly(start, 120, 35, 40, 1, 1, 1, 1, 1, 1, 1, 1)
	plan, err := svc.Optimize(ctx, "behounkova", s)
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	select {
	case m := <-plans:
		if m.RunID != plan.RunID || len(m.Schedule) != len(s) {
			t.Fatalf("controller got run %s with %d hours", m.RunID, len(m.Schedule))
		}
	case <-time.After(10 * time.Second):
		t.Fatal("controller received no plan")
	}

	runs, err := cli.CountRecords(ctx, "chp_dispatch_run", plan.RunID, "-1h")
	if err != nil {
		t.Fatalf("query runs: %v", err)
	}
	if runs == 0 {
		t.Fatal("no run point in Influx")
	}
	hours, err := cli.CountRecords(ctx, "chp_dispatch_hour", plan.RunID, "-2d")
	if err != nil {
		t.Fatalf("query hours: %v", err)
	}
	if hours == 0 {
		t.Fatal("no hourly points in Influx")
	}
	t.Logf("Influx holds %d run and %d hourly records for %s", runs, hours, plan.RunID)

	// Produce JUnit report
	rep := junitReport{Name: "e2e", Tests: 1, Cases: []junitTestCase{{Name: "Test_E2E_DispatchRun", Time: 0}}}
	if err := writeJUnit(filepath.Join(dir, "e2e.xml"), rep); err != nil {
		t.Logf("write junit: %v", err)
	}
}
