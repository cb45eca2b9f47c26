// Package publish sends each sampling cycle's readings to an MQTT broker.
package publish
