// Package clients provides HTTP clients for the recovery API, used by the
// guardian command-line tool and by integrations embedding the service. A
// testify-backed mock of the provider interface is included for tests.
package clients
