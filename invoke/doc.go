// Package invoke turns declared method sets into callable proxies that run
// external programs.
//
// An Interface lists Methods. Each method has a command template whose
// {?} placeholders are filled by its value parameters in order; other
// parameters override the working directory, the deadline or the output
// sink of a single call. Compile validates the declarations once and
// returns a Proxy:
//
//	tools := invoke.MustCompile(invoke.Interface{
//		Name:    "Git",
//		Results: result.String,
//		Methods: []invoke.Method{
//			{Name: "log", Run: "git log --oneline -n {?}", Params: []invoke.Param{invoke.Arg("count")}},
//			{Name: "add", Run: "git add {?}", Params: []invoke.Param{invoke.WorkDirArg("repo"), invoke.VarArgs("paths")}, Returns: invoke.ReturnsNothing},
//		},
//	}, invoke.WithTimeout(10*time.Second))
//
//	out, err := tools.Call(ctx, "log", 5)
//	err = tools.Exec(ctx, "add", "/src/repo", "a.go", "b.go")
//
// Func gives a typed accessor for methods returning a result:
//
//	gitLog, err := invoke.Func[string](tools, "log")
//	out, err := gitLog(ctx, 5)
//
// Settings resolve call argument first, then method, then interface, then
// compile option, then the engine configuration.
package invoke
