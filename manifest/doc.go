// Package manifest loads proxy declarations from YAML.
//
// A manifest lists interfaces the same way invoke.Interface declares them,
// with result factories, roles and return kinds named by string:
//
//	interfaces:
//	  - name: git
//	    dir: /srv/repo
//	    results: lines
//	    methods:
//	      - name: log
//	        run: git log --oneline -n {?}
//	        params:
//	          - name: count
//	      - name: archive
//	        run: git archive --format=tar {?}
//	        returns: nothing
//	        params:
//	          - name: ref
//	          - name: out
//	            role: sink
//
// Durations use Go syntax ("30s", "1m").
package manifest
