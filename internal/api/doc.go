// Package api provides the OANDA v20 client for REST and streaming endpoints.
//
// REST endpoints:
//   - Practice: https://api-fxpractice.oanda.com
//   - Live: https://api-fxtrade.oanda.com
//
// Stream endpoints:
//   - Practice: https://stream-fxpractice.oanda.com
//   - Live: https://stream-fxtrade.oanda.com
//
// Every account-scoped response is validated and then publishes its
// lastTransactionID to the client's txid.Hub, if one is configured.
//
// Transaction history can be addressed two ways: by id range
// (FetchByIDRange) or by a creation-time window (FetchByTimeWindow). A window
// query returns page descriptors, which are id-range URLs; selecting one
// decodes it into an IDRange and fetches that.
package api
