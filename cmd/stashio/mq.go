/* Copyright 2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"
	"strings"
	"time"

	"github.com/Comcast/stash/sio"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQOpts holds mosquitto_sub-style command-line parameters for the
// MQTT coupling.
type MQOpts struct {
	broker      *string
	clientId    *string
	port        *int
	keepAlive   *int
	userName    *string
	password    *string
	willTopic   *string
	willPayload *string
	willQoS     *int
	willRetain  *bool
	reconnect   *bool
	clean       *bool
	quiesce     *int

	certFilename *string
	keyFilename  *string
	insecure     *bool
	caFilename   *string
	caPath       *string

	subTopics *string

	outboundTopic *string
	inTimeout     *time.Duration
}

func mqFlags() *MQOpts {
	return &MQOpts{
		broker:      flag.String("h", "tcp://localhost", "Broker hostname"),
		clientId:    flag.String("i", "", "Client id"),
		port:        flag.Int("p", 1883, "Broker port"),
		keepAlive:   flag.Int("k", 10, "Keep-alive in seconds"),
		userName:    flag.String("u", "", "Username"),
		password:    flag.String("P", "", "Password"),
		willTopic:   flag.String("will-topic", "", "Optional will topic"),
		willPayload: flag.String("will-payload", "", "Optional will message"),
		willQoS:     flag.Int("will-qos", 0, "Optional will QoS"),
		willRetain:  flag.Bool("will-retain", false, "Optional will retention"),
		reconnect:   flag.Bool("reconnect", false, "Automatically attempt to reconnect"),
		clean:       flag.Bool("c", true, "Clean session"),
		quiesce:     flag.Int("quiesce", 100, "Disconnection quiescence (in milliseconds)"),

		certFilename: flag.String("cert", "", "Optional cert filename"),
		keyFilename:  flag.String("key", "", "Optional key filename"),
		insecure:     flag.Bool("insecure", false, "Skip broker cert checking"),
		caFilename:   flag.String("cafile", "", "Optional CA cert filename"),
		caPath:       flag.String("capath", "", "Optional path to CA cert filename"),

		subTopics: flag.String("t", "", "subscription topic(s)"),

		outboundTopic: flag.String("outbound-topic", "updates", "Out-bound update topic"),
		inTimeout:     flag.Duration("in-timeout", time.Second, "timeout for in-bound queuing"),
	}
}

// Couplings builds an MQCouplings from the parsed flags.
func (o *MQOpts) Couplings(ctx context.Context) *MQCouplings {
	mqtt.ERROR = log.New(os.Stderr, "mqtt.error", 0)

	opts := mqtt.NewClientOptions()

	opts.AddBroker(fmt.Sprintf("%s:%d", *o.broker, *o.port))
	opts.SetClientID(*o.clientId)
	opts.SetKeepAlive(time.Second * time.Duration(*o.keepAlive))

	opts.Username = *o.userName
	opts.Password = *o.password
	opts.AutoReconnect = *o.reconnect
	opts.CleanSession = *o.clean

	if *o.willTopic != "" {
		if *o.willPayload == "" {
			log.Fatal("will topic without payload")
		}
		opts.WillEnabled = true
		opts.WillTopic = *o.willTopic
		opts.WillPayload = []byte(*o.willPayload)
		opts.WillRetained = *o.willRetain
		opts.WillQos = byte(*o.willQoS)
	}

	var rootCAs *x509.CertPool
	if *o.caPath != "" {
		if rootCAs, _ = x509.SystemCertPool(); rootCAs == nil {
			rootCAs = x509.NewCertPool()
			log.Printf("Including system CA certs")
		}

		if !strings.HasSuffix(*o.caPath, "/") {
			*o.caPath += "/"
		}
		filename := *o.caPath + *o.caFilename
		certs, err := ioutil.ReadFile(filename)
		if err != nil {
			log.Fatalf("couldn't read '%s': %s", filename, err)
		}

		if ok := rootCAs.AppendCertsFromPEM(certs); !ok {
			log.Println("No certs appended, using system certs only")
		}
	}

	var certs []tls.Certificate
	if *o.keyFilename != "" {
		cert, err := tls.LoadX509KeyPair(*o.certFilename, *o.keyFilename)
		if err != nil {
			log.Fatal(err)
		}
		certs = []tls.Certificate{cert}
	}

	tlsConf := &tls.Config{
		InsecureSkipVerify: *o.insecure,
	}

	if rootCAs != nil {
		tlsConf.RootCAs = rootCAs
	}

	if certs != nil {
		tlsConf.Certificates = certs
	}

	opts.SetTLSConfig(tlsConf)

	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		log.Printf("MQTT connection lost")
	}

	c := &MQCouplings{
		Quiesce:       uint(*o.quiesce),
		SubTopics:     *o.subTopics,
		OutboundTopic: *o.outboundTopic,
		InTimeout:     *o.inTimeout,

		incoming: make(chan *sio.Op),
		outbound: make(chan *sio.Update),
		done:     make(chan bool),
	}

	opts.DefaultPublishHandler = func(client mqtt.Client, msg mqtt.Message) {
		c.inHandler(ctx, client, msg)
	}

	c.Client = mqtt.NewClient(opts)

	return c
}

// MQCouplings is a sio.Couplings that subscribes for in-bound ops and
// publishes out-bound updates.
type MQCouplings struct {
	Client        mqtt.Client
	Quiesce       uint
	SubTopics     string
	OutboundTopic string

	InTimeout time.Duration

	incoming chan *sio.Op
	outbound chan *sio.Update
	done     chan bool
}

// inHandler is a Paho publish handler, which is used to handle
// messages sent to us from the MQTT broker due to our subscriptions.
func (c *MQCouplings) inHandler(ctx context.Context, client mqtt.Client, msg mqtt.Message) {
	log.Printf("incoming: %s %s\n", msg.Topic(), msg.Payload())

	op, err := sio.ParseOp(msg.Payload())
	if err != nil {
		log.Printf("Couldn't parse op: %s", msg.Payload())
		return
	}

	to := time.NewTimer(c.InTimeout)

	select {
	case <-ctx.Done():
		log.Printf("Subscriber not forwarding due to ctx.Done()")
	case c.incoming <- op:
	case <-to.C:
		log.Printf("Subscriber not forwarding due to stall")
	}
}

// Start creates the MQTT session and starts the out-bound publishing
// loop.
func (c *MQCouplings) Start(ctx context.Context) error {
	log.Printf("Attempting to connect to broker")
	if token := c.Client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Printf("Connected to broker")

	for _, topic := range strings.Split(c.SubTopics, ",") {
		topic, qos := parseTopic(topic)
		if topic == "" {
			continue
		}
		log.Printf("Subscribing to %s (%d)", topic, qos)
		if t := c.Client.Subscribe(topic, qos, nil); t.Wait() && t.Error() != nil {
			return t.Error()
		}
	}

	go c.outLoop(ctx)

	return nil
}

// IO returns the channels for in-bound ops and out-bound updates.
func (c *MQCouplings) IO(ctx context.Context) (chan *sio.Op, chan *sio.Update, chan bool, error) {
	return c.incoming, c.outbound, c.done, nil
}

// outLoop publishes updates to the broker.
//
// An update with State set is published bare, so subscribers see the
// new state itself rather than an update envelope.
func (c *MQCouplings) outLoop(ctx context.Context) error {
LOOP:
	for {
		select {
		case <-ctx.Done():
			break LOOP
		case u := <-c.outbound:
			var x interface{} = u
			if u.State != nil {
				x = u.State
			}
			js, err := json.Marshal(x)
			if err != nil {
				log.Printf("Failed to marshal %#v", x)
				continue
			}
			topic, qos := parseTopic(c.OutboundTopic)
			token := c.Client.Publish(topic, qos, false, js)
			token.Wait()
			if token.Error() != nil {
				log.Fatalf("Publish error: %s", token.Error())
			}
		}
	}
	return nil
}

// Stop terminates the MQTT session.
func (c *MQCouplings) Stop(ctx context.Context) error {
	log.Printf("Disconnecting")
	c.Client.Disconnect(c.Quiesce)
	close(c.done)
	return nil
}

// parseTopic can extract QoS from a topic name of the form TOPIC:QOS.
func parseTopic(s string) (string, byte) {
	var topic string
	var qos byte
	if _, err := fmt.Sscanf(strings.Replace(s, ":", " ", 1), "%s %d", &topic, &qos); err != nil {
		return topic, qos
	}
	return s, 0
}
