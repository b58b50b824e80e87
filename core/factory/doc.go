// Package factory instantiates pluggable modules, such as metrics sinks,
// from a configuration entry made of a type name and a raw settings map.
//
// A registry maps type names to factories. Each factory decodes its raw
// settings with Decode, which honours `json` tags:
//
//	sinks := factory.NewRegistry[coremetrics.MetricsSink]()
//	_ = sinks.Register("influx", func(conf map[string]any) (coremetrics.MetricsSink, error) {
//	    var c metrics.InfluxConfig
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return metrics.NewInfluxSink(c), nil
//	})
//	sink, err := sinks.Create(factory.ModuleConfig{Type: "influx", Conf: raw})
package factory
