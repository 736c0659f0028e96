/*

Process of compilation

Bytecode ->
	translate ->
Data Flow Graph (dfg) ->
	propagate ->
Annotated Graph (predictions, usage flags, virtual registers) ->
	generate ->
Machine Code

The translator and the code generator live outside this module. This
package holds the graph itself; the propagate package holds the
optimization pipeline run between them.

*/
package dfg
