package router

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dbusmqtt/internal/app/bus"
	"dbusmqtt/internal/app/directory"
	"dbusmqtt/internal/app/publish"
	"dbusmqtt/internal/app/subscription"
	"dbusmqtt/internal/app/table"
	"dbusmqtt/internal/broker/brokertest"
	"dbusmqtt/internal/config/logger"
	"dbusmqtt/internal/objectbus"
	"dbusmqtt/internal/objectbus/objectbustest"
	"dbusmqtt/internal/registrator"
)

const systemID = "d0ff500097c0"

type fixture struct {
	router  *Router
	bus     *objectbustest.Fake
	brk     *brokertest.Fake
	table   *table.Table
	dir     *directory.Directory
	sub     *subscription.Registry
	pub     *publish.Publisher
	mailbox bus.Bus
}

func newFixture() fixture {
	objBus := objectbustest.New()
	brk := brokertest.New()
	tbl := table.New(systemID, nil)
	dir := directory.New()
	sub := subscription.New()
	pub := publish.New(sub)
	mailbox := bus.New(nil)

	r := New(systemID, objBus, brk, tbl, dir, sub, pub, time.Minute, registrator.NoOp{}, mailbox, noopLogger{})

	return fixture{router: r, bus: objBus, brk: brk, table: tbl, dir: dir, sub: sub, pub: pub, mailbox: mailbox}
}

func Test_HandleMessage_Write_PropagatesToObjectBus(t *testing.T) {
	f := newFixture()

	fullTopic, _ := f.table.AddItem(table.UID(":1.5", "/Relay/0/State"), "system", "0", "/Relay/0/State", objectbus.FromInt(0))
	f.bus.AddLeaf(":1.5", "/Relay/0/State", objectbus.FromInt(0))

	requestTopic := "W/" + systemID + "/system/0/Relay/0/State"
	f.router.HandleMessage(context.Background(), requestTopic, []byte(`{"value":1}`))

	v, err := f.bus.GetValue(context.Background(), ":1.5", "/Relay/0/State")
	require.NoError(t, err)
	assert.Equal(t, float64(1), v.Float)
	_ = fullTopic
}

func Test_HandleMessage_Write_UnknownTopicDropped(t *testing.T) {
	f := newFixture()

	f.router.HandleMessage(context.Background(), "W/"+systemID+"/nowhere/0/X", []byte(`{"value":1}`))
	// No panic, no crash; nothing to assert beyond survival.
}

func Test_HandleMessage_Write_WrongSystemIDDropped(t *testing.T) {
	f := newFixture()

	f.table.AddItem(table.UID(":1.5", "/X"), "system", "0", "/X", objectbus.FromInt(0))
	f.bus.AddLeaf(":1.5", "/X", objectbus.FromInt(0))

	f.router.HandleMessage(context.Background(), "W/other-system/system/0/X", []byte(`{"value":1}`))

	v, _ := f.bus.GetValue(context.Background(), ":1.5", "/X")
	assert.Equal(t, float64(0), v.Float, "write for a foreign system id must be ignored")
}

func Test_HandleMessage_Write_ResolvesUndiscoveredTopicViaDirectory(t *testing.T) {
	f := newFixture()

	f.dir.Register(":1.7", "com.victronenergy.system.0", directory.ShortName("system", "0"))
	f.bus.Names["com.victronenergy.system.0"] = ":1.7"
	f.bus.AddLeaf(":1.7", "/Relay/0/State", objectbus.FromInt(0))

	requestTopic := "W/" + systemID + "/system/0/Relay/0/State"
	f.router.HandleMessage(context.Background(), requestTopic, []byte(`{"value":1}`))

	v, err := f.bus.GetValue(context.Background(), ":1.7", "/Relay/0/State")
	require.NoError(t, err)
	assert.Equal(t, float64(1), v.Float, "write must reach a property never seen via scan or change signal")

	notifyTopic := "N/" + systemID + "/system/0/Relay/0/State"
	uid := table.UID(":1.7", "/Relay/0/State")
	topicName, ok := f.table.Topic(uid)
	require.True(t, ok, "a directory-resolved write must register the topic for future lookups")
	assert.Equal(t, notifyTopic, topicName)
}

func Test_HandleMessage_Write_TriggersImmediateDrain(t *testing.T) {
	f := newFixture()

	f.table.AddItem(table.UID(":1.5", "/Relay/0/State"), "system", "0", "/Relay/0/State", objectbus.FromInt(0))
	f.bus.AddLeaf(":1.5", "/Relay/0/State", objectbus.FromInt(0))

	ch := f.mailbox.Subscribe(context.Background())

	requestTopic := "W/" + systemID + "/system/0/Relay/0/State"
	f.router.HandleMessage(context.Background(), requestTopic, []byte(`{"value":1}`))

	select {
	case msg := <-ch:
		assert.Equal(t, bus.EventIdleDrain, msg.Type)
	default:
		t.Fatal("a successful write must publish an immediate idle-drain event")
	}
}

func Test_HandleMessage_Read_ResolvesUndiscoveredTopicViaDirectory(t *testing.T) {
	f := newFixture()

	f.dir.Register(":1.7", "com.victronenergy.battery.0", directory.ShortName("battery", "0"))
	f.bus.Names["com.victronenergy.battery.0"] = ":1.7"
	f.bus.AddLeaf(":1.7", "/Dc/0/Voltage", objectbus.FromFloat(12.6))

	requestTopic := "R/" + systemID + "/battery/0/Dc/0/Voltage"
	f.router.HandleMessage(context.Background(), requestTopic, nil)

	notifyTopic := "N/" + systemID + "/battery/0/Dc/0/Voltage"
	published, ok := f.brk.LastPublished(notifyTopic)
	require.True(t, ok, "a read for a property only known through the directory must still publish")
	assert.JSONEq(t, `{"value":12.6}`, string(published.Payload))

	_, ok = f.table.Topic(table.UID(":1.7", "/Dc/0/Voltage"))
	assert.True(t, ok, "a directory-resolved read must register the topic for future lookups")
}

func Test_HandleMessage_Read_PublishesImmediatelyNonRetained(t *testing.T) {
	f := newFixture()

	f.table.AddItem(table.UID(":1.5", "/Dc/0/Voltage"), "battery", "0", "/Dc/0/Voltage", objectbus.FromFloat(1))
	f.bus.AddLeaf(":1.5", "/Dc/0/Voltage", objectbus.FromFloat(12.6))

	requestTopic := "R/" + systemID + "/battery/0/Dc/0/Voltage"
	f.router.HandleMessage(context.Background(), requestTopic, nil)

	notifyTopic := "N/" + systemID + "/battery/0/Dc/0/Voltage"
	published, ok := f.brk.LastPublished(notifyTopic)
	require.True(t, ok)
	assert.False(t, published.Retain)
	assert.JSONEq(t, `{"value":12.6}`, string(published.Payload))
}

func Test_HandleMessage_SubscribeAllAlias_RepublishesEverything(t *testing.T) {
	f := newFixture()

	f.table.AddItem(table.UID(":1.5", "/Serial"), "system", "0", "/Serial", objectbus.FromString(systemID))
	f.table.AddItem(table.UID(":1.5", "/Dc/0/Voltage"), "battery", "0", "/Dc/0/Voltage", objectbus.FromFloat(12.6))

	requestTopic := "R/" + systemID + "/system/0/Serial"
	f.router.HandleMessage(context.Background(), requestTopic, nil)

	assert.Equal(t, 1, f.sub.Len())
	assert.Equal(t, 2, f.pub.Len())
}

func Test_HandleMessage_Keepalive_EmptyPayloadSubscribesAllOnce(t *testing.T) {
	f := newFixture()

	f.table.AddItem(table.UID(":1.5", "/Dc/0/Voltage"), "battery", "0", "/Dc/0/Voltage", objectbus.FromFloat(12.6))

	requestTopic := "R/" + systemID + "/keepalive"
	f.router.HandleMessage(context.Background(), requestTopic, []byte{})
	f.router.HandleMessage(context.Background(), requestTopic, []byte{}) // refresh, no re-publish

	assert.Equal(t, 1, f.sub.Len())
	assert.Equal(t, 1, f.pub.Len(), "second empty keepalive must only refresh, not re-publish")
}

func Test_HandleMessage_Keepalive_PatternPublishesMatchingOnly(t *testing.T) {
	f := newFixture()

	f.table.AddItem(table.UID(":1.5", "/Relay/0/State"), "system", "0", "/Relay/0/State", objectbus.FromInt(1))
	f.table.AddItem(table.UID(":1.5", "/Dc/0/Voltage"), "battery", "0", "/Dc/0/Voltage", objectbus.FromFloat(12.6))

	requestTopic := "R/" + systemID + "/keepalive"
	f.router.HandleMessage(context.Background(), requestTopic, []byte(`["system/+/Relay/0/State"]`))

	assert.True(t, f.pub.IsPublished("N/"+systemID+"/system/0/Relay/0/State"))
	assert.False(t, f.pub.IsPublished("N/"+systemID+"/battery/0/Dc/0/Voltage"))
}

func Test_HandleMeta_LossTriggersReregistration(t *testing.T) {
	f := newFixture()
	reg := &countingRegistrator{}
	f.router.reg = reg

	metaTopic := "$SYS/broker/connection/cloud-client/state"
	f.router.HandleMessage(context.Background(), metaTopic, []byte("1"))
	assert.True(t, f.router.connectedToCloud)

	f.router.HandleMessage(context.Background(), metaTopic, []byte("0"))
	assert.False(t, f.router.connectedToCloud)
	assert.Equal(t, 1, reg.calls)
}

type countingRegistrator struct{ calls int }

func (c *countingRegistrator) Reconnect(context.Context) error {
	c.calls++

	return nil
}

type noopLogger struct{}

func (noopLogger) Debug() logger.Event                { return noopEvent{} }
func (noopLogger) Info() logger.Event                 { return noopEvent{} }
func (noopLogger) Warn() logger.Event                 { return noopEvent{} }
func (noopLogger) Error() logger.Event                { return noopEvent{} }
func (noopLogger) WithComponent(string) logger.Logger { return noopLogger{} }

type noopEvent struct{}

func (noopEvent) Msg(string)                             {}
func (noopEvent) Msgf(string, ...interface{})            {}
func (noopEvent) Str(string, string) logger.Event        { return noopEvent{} }
func (noopEvent) Int(string, int) logger.Event           { return noopEvent{} }
func (noopEvent) Dur(string, time.Duration) logger.Event { return noopEvent{} }
func (noopEvent) Err(error) logger.Event                 { return noopEvent{} }
