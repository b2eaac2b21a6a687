package util

// MetricsBucketsMicroSeconds covers in-process ledger operations, 100µs to roughly 26s.
var MetricsBucketsMicroSeconds = []float64{
	100e-6, 400e-6, 1.6e-3, 6.4e-3, 25.6e-3, 102.4e-3, 409.6e-3, 1.6384, 6.5536, 26.2144,
}

// MetricsBucketsMilliSeconds covers request handling including encoding, 500µs to roughly 4s.
var MetricsBucketsMilliSeconds = []float64{
	0.5e-3, 1e-3, 2e-3, 4e-3, 8e-3, 16e-3, 32e-3, 64e-3, 128e-3, 256e-3, 512e-3, 1.024, 2.048, 4.096,
}
